package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/obra/internal/core/domain"
)

func TestSettingsShow(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	testSettings.settings.LLM.APIKey = "AIzaSy-secret-1234"

	out, err := execute("settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "[Embedding]")
	assert.Contains(t, out, "[LLM]")
	assert.Contains(t, out, "Model: gemini-2.0-flash")
	assert.Contains(t, out, "API Key: AIza...1234")
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "Max results: 5")
	assert.Contains(t, out, "Min score: 0.50")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShow_IsDefault(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	testSettings.validateErr = domain.NewValidationError("llm.api_key", "required")

	out, err := execute("settings")

	require.NoError(t, err)
	assert.Contains(t, out, "Current Settings")
	assert.Contains(t, out, "Warning:")
	assert.Contains(t, out, "obra settings set")
}

func TestSettingsSet(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("settings", "set", "rag.min_score", "0.4")

	require.NoError(t, err)
	assert.Contains(t, out, "rag.min_score = 0.4")
	assert.Equal(t, [][2]string{{"rag.min_score", "0.4"}}, testSettings.setCalls)
}

func TestSettingsSet_MasksAPIKey(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("settings", "set", "llm.api_key", "sk-abcdefghijklmnop")

	require.NoError(t, err)
	assert.Contains(t, out, "llm.api_key = sk-a...mnop")
	assert.NotContains(t, out, "abcdefghijkl")
}

func TestSettingsSet_Error(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	testSettings.setErr = errors.New("unknown setting")

	_, err := execute("settings", "set", "rag.colour", "blue")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set rag.colour")
}

func TestSettingsSet_ListsKeys(t *testing.T) {
	assert.Contains(t, settingsSetCmd.Long, "rag.min_score")
	assert.Contains(t, settingsSetCmd.Long, "rag.max_results")
}

func TestSettings_NoService(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	settingsService = nil

	_, err := execute("settings", "show")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings service not configured")
}

func TestSettingsEmbedding_Interactive(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("3\n\n"))
	defer rootCmd.SetIn(nil)

	out, err := execute("settings", "embedding")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, testSettings.settings.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", testSettings.settings.Embedding.Model)
	assert.Empty(t, testSettings.settings.Embedding.APIKey)
	assert.Contains(t, out, "Validating configuration... OK")
}

func TestSettingsLLM_Interactive(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("2\ngpt-4o\nsk-test-0000000000\n"))
	defer rootCmd.SetIn(nil)

	out, err := execute("settings", "llm")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, testSettings.settings.LLM.Provider)
	assert.Equal(t, "gpt-4o", testSettings.settings.LLM.Model)
	assert.Equal(t, "sk-test-0000000000", testSettings.settings.LLM.APIKey)
	assert.Contains(t, out, "LLM provider configured")
}

func TestSettingsLLM_MissingKey(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("1\n\n\n"))
	defer rootCmd.SetIn(nil)

	_, err := execute("settings", "llm")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestMaskAPIKey(t *testing.T) {
	tests := map[string]string{
		"":                                   "****",
		"abc123":                             "****",
		"12345678":                           "****",
		"sk-1234567890abcdef":                "sk-1...cdef",
		"sk-proj-1234567890abcdefghijklmnop": "sk-p...mnop",
	}
	for in, want := range tests {
		assert.Equal(t, want, maskAPIKey(in), in)
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		input string
		def   int
		want  int
	}{
		{"", 1, 1},
		{"3", 1, 3},
		{" 4 ", 1, 4},
		{"0", 1, 1},
		{"6", 1, 1},
		{"-1", 1, 1},
		{"abc", 2, 2},
		{"   ", 1, 1},
		{"5", 1, 5},
		{"1", 3, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseChoice(tt.input, 5, tt.def), "input %q", tt.input)
	}
}
