package driving

import "github.com/custodia-labs/obra/internal/core/domain"

// SettingsService reads and changes the persisted configuration.
type SettingsService interface {
	Get() (*domain.AppSettings, error)
	Save(settings *domain.AppSettings) error

	// Set parses value for the dotted key (e.g. "rag.min_score") and stores it.
	// Unknown keys and unparsable values fail with domain.ErrInvalidInput.
	Set(key, value string) error

	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// Validate checks the stored values without contacting any provider.
	Validate() error

	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig and ValidateLLMConfig ping the configured provider.
	ValidateEmbeddingConfig() error
	ValidateLLMConfig() error
}
