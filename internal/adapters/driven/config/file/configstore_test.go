package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore returns a store in a temp dir whose environment is env.
func newTestStore(t *testing.T, env map[string]string) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	store.lookup = func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	return store
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "deep")

	store, err := NewConfigStore(nested)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, "config.toml"), store.Path())
	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not valid TOML {{{[["), 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := newTestStore(t, nil)
	require.NoError(t, store.Set("name", "obra"))
	require.NoError(t, store.Set("count", 42))
	require.NoError(t, store.Set("enabled", true))
	require.NoError(t, store.Set("tags", []string{"a", "b"}))

	assert.Equal(t, "obra", store.GetString("name"))
	assert.Equal(t, 42, store.GetInt("count"))
	assert.True(t, store.GetBool("enabled"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("tags"))

	// Wrong types read as zero values.
	assert.Equal(t, "", store.GetString("count"))
	assert.Equal(t, 0, store.GetInt("name"))
	assert.False(t, store.GetBool("name"))
	assert.Nil(t, store.GetStringSlice("count"))

	val, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("rag.max_results", 7))
	require.NoError(t, store.Set("rag.min_score", 0.35))
	require.NoError(t, store.Set("llm.provider", "openai"))
	require.NoError(t, store.Set("rag.request_timeout", "90s"))

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 7, reloaded.GetInt("rag.max_results"))
	assert.Equal(t, "openai", reloaded.GetString("llm.provider"))
	assert.Equal(t, "90s", reloaded.GetString("rag.request_timeout"))
	score, ok := reloaded.Get("rag.min_score")
	require.True(t, ok)
	assert.InDelta(t, 0.35, score, 1e-9)
}

func TestConfigStore_Load_NestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := "[rag]\nmax_results = 9\n\n[llm]\nprovider = \"gemini\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 9, store.GetInt("rag.max_results"))
	assert.Equal(t, "gemini", store.GetString("llm.provider"))
}

func TestConfigStore_Load_CommentOnlyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("# nada\n"), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("any")
	assert.False(t, ok)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store := newTestStore(t, nil)
	require.NoError(t, store.Set("test", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store := newTestStore(t, nil)
	require.NoError(t, store.Set("test", "value"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("another", "value"))
	assert.Error(t, store.Save())
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store := newTestStore(t, nil)

	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_EnvOverridesFile(t *testing.T) {
	store := newTestStore(t, map[string]string{
		"OBRA_RAG_MAX_RESULTS": "12",
		"OBRA_RAG_MIN_SCORE":   "0.2",
		"OBRA_INGEST_ENABLED":  "true",
		"OBRA_INGEST_EXTS":     "pdf, bc3,,csv",
	})
	require.NoError(t, store.Set("rag.max_results", 5))

	assert.Equal(t, 12, store.GetInt("rag.max_results"))
	assert.Equal(t, "0.2", store.GetString("rag.min_score"))
	assert.True(t, store.GetBool("ingest.enabled"))
	assert.Equal(t, []string{"pdf", "bc3", "csv"}, store.GetStringSlice("ingest.exts"))

	// The override is not persisted.
	reloaded, err := NewConfigStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Equal(t, int64(5), reloaded.data["rag.max_results"])
}

func TestConfigStore_EmptyEnvIgnored(t *testing.T) {
	store := newTestStore(t, map[string]string{"OBRA_LLM_MODEL": ""})
	require.NoError(t, store.Set("llm.model", "gpt-4o"))

	assert.Equal(t, "gpt-4o", store.GetString("llm.model"))
}

func TestConfigStore_ProviderAPIKeyFallback(t *testing.T) {
	env := map[string]string{
		"GEMINI_API_KEY": "gemini-key",
		"OPENAI_API_KEY": "openai-key",
	}

	t.Run("default provider is gemini", func(t *testing.T) {
		store := newTestStore(t, env)
		assert.Equal(t, "gemini-key", store.GetString("llm.api_key"))
	})

	t.Run("follows configured provider", func(t *testing.T) {
		store := newTestStore(t, env)
		require.NoError(t, store.Set("embedding.provider", "openai"))
		assert.Equal(t, "openai-key", store.GetString("embedding.api_key"))
	})

	t.Run("file value wins", func(t *testing.T) {
		store := newTestStore(t, env)
		require.NoError(t, store.Set("llm.api_key", "stored"))
		assert.Equal(t, "stored", store.GetString("llm.api_key"))
	})

	t.Run("only api keys fall back", func(t *testing.T) {
		store := newTestStore(t, env)
		_, ok := store.Get("llm.model")
		assert.False(t, ok)
	})
}

func TestNewConfigStore_LoadsDotEnv(t *testing.T) {
	const name = "OBRA_TEST_DOTENV_VALUE"
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(name+"=desde-env\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv(name) })

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "desde-env", store.GetString("test.dotenv_value"))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "OBRA_LLM_API_KEY", EnvName("llm.api_key"))
	assert.Equal(t, "OBRA_SESSION_TTL", EnvName("session.ttl"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := newTestStore(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "key" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_, _ = store.Get(key)
		}(i)
	}
	wg.Wait()
}

func TestDefaultDir_HonoursObraHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OBRA_HOME", dir)

	got, err := DefaultDir()

	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestConfigStore_WritesTables(t *testing.T) {
	store := newTestStore(t, nil)
	require.NoError(t, store.Set("rag.max_results", 7))
	require.NoError(t, store.Set("llm.provider", "openai"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	assert.Contains(t, string(raw), "[rag]")
	assert.Contains(t, string(raw), "max_results = 7")
	assert.Contains(t, string(raw), "[llm]")
	assert.NotContains(t, string(raw), "rag.max_results")
}

func TestConfigStore_SetFailureRestoresValue(t *testing.T) {
	store := newTestStore(t, nil)
	require.NoError(t, store.Set("rag.max_results", 7))

	assert.Error(t, store.Set("rag.max_results", make(chan int)))
	assert.Equal(t, 7, store.GetInt("rag.max_results"))

	assert.Error(t, store.Set("broken", make(chan int)))
	_, ok := store.Get("broken")
	assert.False(t, ok)
	assert.NoError(t, store.Save())
}

func TestNest_ScalarPrefixKeepsDottedKey(t *testing.T) {
	tree := nest(map[string]any{"rag": "x", "rag.min_score": 0.5, "llm.model": "m"})

	assert.Equal(t, "x", tree["rag"])
	assert.Equal(t, 0.5, tree["rag.min_score"])
	assert.Equal(t, map[string]any{"model": "m"}, tree["llm"])
}
