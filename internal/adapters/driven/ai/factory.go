// Package ai builds the embedding and language model adapters selected in
// config.toml and checks that the provider answers before handing them out.
package ai

import (
	"context"
	"fmt"
	"time"

	geminiembed "github.com/custodia-labs/obra/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/obra/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/obra/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/obra/internal/adapters/driven/llm"
	geminillm "github.com/custodia-labs/obra/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/obra/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/obra/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

const (
	pingTimeout = 5 * time.Second
	fixHint     = "Run 'obra settings show' and 'obra settings set' to fix"
)

// InitResult holds whichever services could be opened. A provider that is
// configured but broken leaves its field nil and adds a warning, so commands
// that only read the index keep working.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Warnings         []string
}

// Close closes the opened services.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		_ = r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		_ = r.LLMService.Close()
	}
}

// Init opens both providers. prompts, when set, is handed to the language model.
func Init(settings *domain.AppSettings, prompts driven.PromptStore) *InitResult {
	result := &InitResult{}

	if svc, err := CreateAndValidateEmbeddingService(&settings.Embedding); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	} else {
		result.EmbeddingService = svc
	}

	svc, err := CreateAndValidateLLMService(&settings.LLM)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
	case svc != nil:
		if aware, ok := svc.(driven.PromptStoreAware); ok && prompts != nil {
			aware.SetPromptStore(prompts)
		}
		result.LLMService = svc
	}
	return result
}

// pingable is what both service kinds share.
type pingable interface {
	Ping(ctx context.Context) error
	Close() error
}

func ping(svc pingable) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// openChecked creates a service and pings it. Failures wrap unavailable
// and carry the fix hint. The service is closed when the ping fails.
func openChecked[S pingable](create func() (S, error), unavailable error) (S, error) {
	var zero S
	svc, err := create()
	if err != nil {
		return zero, fmt.Errorf("%w: %w. %s", unavailable, err, fixHint)
	}
	if err := ping(svc); err != nil {
		_ = svc.Close()
		return zero, fmt.Errorf("%w: service unreachable (%w). %s", unavailable, err, fixHint)
	}
	return svc, nil
}

// CreateAndValidateEmbeddingService returns nil without error when no
// embedding provider is configured.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	return openChecked(func() (driven.EmbeddingService, error) {
		return CreateEmbeddingService(settings)
	}, domain.ErrEmbeddingUnavailable)
}

// CreateAndValidateLLMService returns nil without error when no language
// model is configured.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	return openChecked(func() (driven.LLMService, error) {
		return CreateLLMService(settings)
	}, domain.ErrLLMUnavailable)
}

// ValidateEmbeddingConfig opens a throwaway service for settings and pings it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()
	return ping(svc)
}

// ValidateLLMConfig opens a throwaway language model for settings and pings it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()
	return ping(svc)
}

// CreateEmbeddingService builds the adapter for settings.Provider. Without
// an explicit size, the known size of the model is used.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("embedding provider not configured")
	}

	dims := settings.Dimensions
	if dims == 0 {
		dims = domain.EmbeddingDimensions()[settings.Model]
	}

	switch settings.Provider {
	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(geminiembed.Config{
			APIKey: settings.APIKey, BaseURL: settings.BaseURL, Model: settings.Model, Dimensions: dims,
		})
	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey: settings.APIKey, BaseURL: settings.BaseURL, Model: settings.Model, Dimensions: dims,
		})
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL, Model: settings.Model, Dimensions: dims,
		})
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
}

// CreateLLMService wraps the provider backend in the shared llm.Service,
// which owns prompts, retries and rate limiting.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("LLM provider not configured")
	}

	backend, err := newBackend(settings)
	if err != nil {
		return nil, err
	}
	return llm.New(backend, llm.Config{
		Temperature:       settings.Temperature,
		MaxTokens:         settings.MaxTokens,
		RequestsPerMinute: settings.RequestsPerMinute,
	}), nil
}

func newBackend(settings *domain.LLMSettings) (llm.Backend, error) {
	switch settings.Provider {
	case domain.AIProviderGemini:
		return geminillm.NewBackend(geminillm.Config{
			APIKey: settings.APIKey, BaseURL: settings.BaseURL, Model: settings.Model,
		})
	case domain.AIProviderOpenAI:
		return openaillm.NewBackend(openaillm.Config{
			APIKey: settings.APIKey, BaseURL: settings.BaseURL, Model: settings.Model,
		})
	case domain.AIProviderOllama:
		return ollamallm.NewBackend(ollamallm.Config{
			BaseURL: settings.BaseURL, Model: settings.Model,
		})
	}
	return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
}
