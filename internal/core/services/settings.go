package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyEmbedProvider     = "embedding.provider"
	KeyEmbedModel        = "embedding.model"
	KeyEmbedBaseURL      = "embedding.base_url"
	KeyEmbedAPIKey       = "embedding.api_key"
	KeyEmbedDimensions   = "embedding.dimensions"
	KeyLLMProvider       = "llm.provider"
	KeyLLMModel          = "llm.model"
	KeyLLMBaseURL        = "llm.base_url"
	KeyLLMAPIKey         = "llm.api_key"
	KeyLLMTemperature    = "llm.temperature"
	KeyLLMMaxTokens      = "llm.max_tokens"
	KeyLLMRequestsPerMin = "llm.requests_per_minute"
	KeyRAGMaxResults     = "rag.max_results"
	KeyRAGMinScore       = "rag.min_score"
	KeyRAGTimeout        = "rag.request_timeout"
	KeyRAGEnrichWorkers  = "rag.enrich_concurrency"
	KeyChunkSize         = "ingest.chunk_size"
	KeyChunkOverlap      = "ingest.chunk_overlap"
	KeyMaxChunks         = "ingest.max_chunks"
	KeyEmbedBatchSize    = "ingest.embed_batch_size"
	KeyMaxFileSizeMB     = "ingest.max_file_size_mb"
	KeyMinContentLength  = "ingest.min_content_length"
	KeySessionMessages   = "session.max_messages"
	KeySessionPrompt     = "session.prompt_messages"
	KeySessionTTL        = "session.ttl"
	KeyMaxSessions       = "session.max_sessions"
)

type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindDuration
	kindProvider
)

// settingKinds lists every key accepted by Set with the type it parses to.
var settingKinds = map[string]settingKind{
	KeyEmbedProvider:     kindProvider,
	KeyEmbedModel:        kindString,
	KeyEmbedBaseURL:      kindString,
	KeyEmbedAPIKey:       kindString,
	KeyEmbedDimensions:   kindInt,
	KeyLLMProvider:       kindProvider,
	KeyLLMModel:          kindString,
	KeyLLMBaseURL:        kindString,
	KeyLLMAPIKey:         kindString,
	KeyLLMTemperature:    kindFloat,
	KeyLLMMaxTokens:      kindInt,
	KeyLLMRequestsPerMin: kindInt,
	KeyRAGMaxResults:     kindInt,
	KeyRAGMinScore:       kindFloat,
	KeyRAGTimeout:        kindDuration,
	KeyRAGEnrichWorkers:  kindInt,
	KeyChunkSize:         kindInt,
	KeyChunkOverlap:      kindInt,
	KeyMaxChunks:         kindInt,
	KeyEmbedBatchSize:    kindInt,
	KeyMaxFileSizeMB:     kindInt,
	KeyMinContentLength:  kindInt,
	KeySessionMessages:   kindInt,
	KeySessionPrompt:     kindInt,
	KeySessionTTL:        kindDuration,
	KeyMaxSessions:       kindInt,
}

// SettingKeys returns every key accepted by Set, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings, filling unset values with defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	embedProvider := s.getProvider(KeyEmbedProvider, d.Embedding.Provider)
	llmProvider := s.getProvider(KeyLLMProvider, d.LLM.Provider)

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   embedProvider,
			Model:      s.getString(KeyEmbedModel, domain.DefaultEmbeddingModels()[embedProvider]),
			BaseURL:    s.configStore.GetString(KeyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:     s.configStore.GetString(KeyEmbedAPIKey),
			Dimensions: s.configStore.GetInt(KeyEmbedDimensions),
		},
		LLM: domain.LLMSettings{
			Provider:          llmProvider,
			Model:             s.getString(KeyLLMModel, domain.DefaultLLMModels()[llmProvider]),
			BaseURL:           s.configStore.GetString(KeyLLMBaseURL),
			APIKey:            s.configStore.GetString(KeyLLMAPIKey),
			Temperature:       s.getFloat(KeyLLMTemperature, d.LLM.Temperature),
			MaxTokens:         s.getInt(KeyLLMMaxTokens, d.LLM.MaxTokens),
			RequestsPerMinute: s.getInt(KeyLLMRequestsPerMin, d.LLM.RequestsPerMinute),
		},
		RAG: domain.RAGSettings{
			MaxResults:        s.getInt(KeyRAGMaxResults, d.RAG.MaxResults),
			MinScore:          s.getFloat(KeyRAGMinScore, d.RAG.MinScore),
			RequestTimeout:    s.getDuration(KeyRAGTimeout, d.RAG.RequestTimeout),
			EnrichConcurrency: s.getInt(KeyRAGEnrichWorkers, d.RAG.EnrichConcurrency),
		},
		Ingest: domain.IngestSettings{
			ChunkSize:        s.getInt(KeyChunkSize, d.Ingest.ChunkSize),
			ChunkOverlap:     s.getInt(KeyChunkOverlap, d.Ingest.ChunkOverlap),
			MaxChunks:        s.getInt(KeyMaxChunks, d.Ingest.MaxChunks),
			EmbedBatchSize:   s.getInt(KeyEmbedBatchSize, d.Ingest.EmbedBatchSize),
			MaxFileSizeMB:    s.getInt(KeyMaxFileSizeMB, d.Ingest.MaxFileSizeMB),
			MinContentLength: s.getInt(KeyMinContentLength, d.Ingest.MinContentLength),
		},
		Session: domain.SessionSettings{
			MaxMessages:    s.getInt(KeySessionMessages, d.Session.MaxMessages),
			PromptMessages: s.getInt(KeySessionPrompt, d.Session.PromptMessages),
			TTL:            s.getDuration(KeySessionTTL, d.Session.TTL),
			MaxSessions:    s.getInt(KeyMaxSessions, d.Session.MaxSessions),
		},
	}

	return settings, nil
}

// Save persists application settings. Empty API keys are never written.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{KeyEmbedProvider, settings.Embedding.Provider.String()},
		{KeyEmbedModel, settings.Embedding.Model},
		{KeyEmbedBaseURL, settings.Embedding.BaseURL},
		{KeyEmbedDimensions, settings.Embedding.Dimensions},
		{KeyLLMProvider, settings.LLM.Provider.String()},
		{KeyLLMModel, settings.LLM.Model},
		{KeyLLMBaseURL, settings.LLM.BaseURL},
		{KeyLLMTemperature, settings.LLM.Temperature},
		{KeyLLMMaxTokens, settings.LLM.MaxTokens},
		{KeyLLMRequestsPerMin, settings.LLM.RequestsPerMinute},
		{KeyRAGMaxResults, settings.RAG.MaxResults},
		{KeyRAGMinScore, settings.RAG.MinScore},
		{KeyRAGTimeout, settings.RAG.RequestTimeout.String()},
		{KeyRAGEnrichWorkers, settings.RAG.EnrichConcurrency},
		{KeyChunkSize, settings.Ingest.ChunkSize},
		{KeyChunkOverlap, settings.Ingest.ChunkOverlap},
		{KeyMaxChunks, settings.Ingest.MaxChunks},
		{KeyEmbedBatchSize, settings.Ingest.EmbedBatchSize},
		{KeyMaxFileSizeMB, settings.Ingest.MaxFileSizeMB},
		{KeyMinContentLength, settings.Ingest.MinContentLength},
		{KeySessionMessages, settings.Session.MaxMessages},
		{KeySessionPrompt, settings.Session.PromptMessages},
		{KeySessionTTL, settings.Session.TTL.String()},
		{KeyMaxSessions, settings.Session.MaxSessions},
	}
	if settings.Embedding.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{KeyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{KeyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Set stores a single setting, parsing value for the key's type.
// Unknown keys and unparsable values fail with domain.ErrInvalidInput.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return domain.NewValidationError("key", fmt.Sprintf("unknown setting %q", key))
	}

	var v any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return domain.NewValidationError(key, "must be an integer")
		}
		v = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return domain.NewValidationError(key, "must be a number")
		}
		v = f
	case kindDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return domain.NewValidationError(key, "must be a duration such as 90s or 2h")
		}
		v = value
	case kindProvider:
		if !domain.AIProvider(value).IsValid() {
			return domain.NewValidationError(key, fmt.Sprintf("unknown provider %q", value))
		}
		v = value
	default:
		v = value
	}

	if err := s.configStore.Set(key, v); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// Vector size follows the model
	settings.Embedding.Dimensions = domain.EmbeddingDimensions()[settings.Embedding.Model]

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	supported := false
	for _, p := range domain.AllLLMProviders() {
		if p == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	if model != "" {
		settings.LLM.Model = model
	} else {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}
	settings.LLM.BaseURL = ""
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks the settings can serve queries and ingestion.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider))
	}
	if !settings.LLM.IsConfigured() {
		errs = append(errs, fmt.Errorf("LLM provider %q is not configured", settings.LLM.Provider))
	}
	if settings.RAG.MaxResults < 1 || settings.RAG.MaxResults > domain.MaxMaxResults {
		errs = append(errs, domain.NewValidationError(KeyRAGMaxResults, fmt.Sprintf("must be between 1 and %d", domain.MaxMaxResults)))
	}
	if settings.RAG.MinScore < 0 || settings.RAG.MinScore > 1 {
		errs = append(errs, domain.NewValidationError(KeyRAGMinScore, "must be between 0 and 1"))
	}
	if settings.Ingest.ChunkOverlap >= settings.Ingest.ChunkSize {
		errs = append(errs, domain.NewValidationError(KeyChunkOverlap, "must be smaller than the chunk size"))
	}
	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
