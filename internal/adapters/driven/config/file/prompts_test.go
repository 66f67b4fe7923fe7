package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/prompts"
)

func TestNewPromptStore_WithCustomDir(t *testing.T) {
	dir := t.TempDir()

	store, err := NewPromptStore(dir)

	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	t.Setenv("OBRA_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	store, err := NewPromptStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".obra", "prompts"), store.Dir())
}

func TestNewPromptStore_NoIO(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")

	_, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptRAGSystem)
	require.NoError(t, err)

	for _, name := range prompts.Names() {
		data, err := os.ReadFile(filepath.Join(dir, name+".txt"))
		require.NoError(t, err, "expected file for %s", name)
		assert.Equal(t, prompts.Default(name), string(data))
	}
	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "price_estimate.txt")
}

func TestPromptStore_Load_ReturnsDefaultContent(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptRAGContext)

	require.NoError(t, err)
	assert.Contains(t, prompt, "Pregunta del usuario: %s")
}

func TestPromptStore_Load_ReturnsCustomContent(t *testing.T) {
	dir := t.TempDir()
	custom := "Responde en una frase. %s %s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rag_context.txt"), []byte(custom+"\n\n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptRAGContext)

	require.NoError(t, err)
	assert.Equal(t, custom, prompt)

	// The user's file survives initialisation.
	data, err := os.ReadFile(filepath.Join(dir, "rag_context.txt"))
	require.NoError(t, err)
	assert.Equal(t, custom+"\n\n", string(data))
}

func TestPromptStore_Load_FallsBackToBuiltin(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		content *string
	}{
		{name: "blank file", prompt: driven.PromptMarketEstimate, content: ptr("  \n")},
		{name: "missing file", prompt: driven.PromptPriceEstimate},
		{name: "too few placeholders", prompt: driven.PromptPriceEstimate, content: ptr("Precio de %s:")},
		{name: "extra placeholder", prompt: driven.PromptRAGContext, content: ptr("%s %s %s")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			store, err := NewPromptStore(dir)
			require.NoError(t, err)
			_, err = store.Load(driven.PromptRAGSystem)
			require.NoError(t, err)

			path := filepath.Join(dir, tt.prompt+".txt")
			if tt.content == nil {
				require.NoError(t, os.Remove(path))
			} else {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0600))
			}

			got, err := store.Load(tt.prompt)

			require.NoError(t, err)
			assert.Equal(t, prompts.Default(tt.prompt), got)
		})
	}
}

func ptr(s string) *string { return &s }

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nonexistent")

	assert.Error(t, err)
}

func TestPromptStore_Reload_ClearsCache(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	first, err := store.Load(driven.PromptRAGSystem)
	require.NoError(t, err)

	path := filepath.Join(dir, "rag_system.txt")
	require.NoError(t, os.WriteFile(path, []byte("Eres un asistente breve."), 0600))

	cached, err := store.Load(driven.PromptRAGSystem)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()

	fresh, err := store.Load(driven.PromptRAGSystem)
	require.NoError(t, err)
	assert.Equal(t, "Eres un asistente breve.", fresh)
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	names := prompts.Names()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt, err := store.Load(names[i%len(names)])
			assert.NoError(t, err)
			assert.NotEmpty(t, prompt)
			if i%5 == 0 {
				store.Reload()
			}
		}()
	}
	wg.Wait()
}

func TestPromptStore_ResolvesThroughPromptsPackage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rag_context.txt"), []byte("C=%s Q=%s"), 0600))
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	got := prompts.ContextPrompt(store, "¿precio?", []string{"uno"})

	assert.Equal(t, "C=Fragmento 1:\nuno Q=¿precio?", got)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, 0, placeholders("sin marcadores"))
	assert.Equal(t, 2, placeholders("%s y %s"))
	assert.Equal(t, 1, placeholders("100%% de %s"))
	assert.Equal(t, 3, placeholders(prompts.Default(driven.PromptPriceEstimate)))
}
