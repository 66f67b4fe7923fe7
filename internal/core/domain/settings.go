package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderGemini is the Google Gemini API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderOpenAI is the OpenAI API or any compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderGemini, AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderGemini || p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (Ollama, OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (Gemini, OpenAI).
	APIKey string

	// Dimensions is the vector size. Zero uses the model default.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds generative model configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (Ollama, OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (Gemini, OpenAI).
	APIKey string

	// Temperature is the default sampling temperature.
	Temperature float64

	// MaxTokens bounds generated output.
	MaxTokens int

	// RequestsPerMinute paces calls to the provider. Zero disables pacing.
	RequestsPerMinute int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	return !l.Provider.RequiresAPIKey() || l.APIKey != ""
}

// RAGSettings holds query behaviour defaults.
type RAGSettings struct {
	// MaxResults is the default evidence count per query.
	MaxResults int

	// MinScore is the default relevance gate.
	MinScore float64

	// RequestTimeout bounds a whole query or BC3 generation.
	RequestTimeout time.Duration

	// EnrichConcurrency bounds parallel price estimates in BC3 generation.
	EnrichConcurrency int
}

// IngestSettings holds document processing limits.
type IngestSettings struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int

	// MaxChunks caps chunks stored per document.
	MaxChunks int

	// EmbedBatchSize is the number of chunks embedded per request.
	EmbedBatchSize int

	// MaxFileSizeMB rejects larger files.
	MaxFileSizeMB int

	// MinContentLength drops shorter BC3 concept blocks.
	MinContentLength int
}

// SessionSettings bounds conversation memory.
type SessionSettings struct {
	// MaxMessages is the number of messages kept per session.
	MaxMessages int

	// PromptMessages is the number of recent messages sent to the model.
	PromptMessages int

	// TTL expires idle sessions.
	TTL time.Duration

	// MaxSessions caps live sessions; the least recently used is evicted.
	MaxSessions int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds generative model settings.
	LLM LLMSettings

	// RAG holds query defaults.
	RAG RAGSettings

	// Ingest holds document processing limits.
	Ingest IngestSettings

	// Session holds conversation memory limits.
	Session SessionSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are selected but need API keys before use.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderGemini,
			Model:    DefaultEmbeddingModels()[AIProviderGemini],
		},
		LLM: LLMSettings{
			Provider:          AIProviderGemini,
			Model:             DefaultLLMModels()[AIProviderGemini],
			Temperature:       0.7,
			MaxTokens:         2048,
			RequestsPerMinute: 60,
		},
		RAG: RAGSettings{
			MaxResults:        DefaultMaxResults,
			MinScore:          DefaultMinScore,
			RequestTimeout:    120 * time.Second,
			EnrichConcurrency: 4,
		},
		Ingest: IngestSettings{
			ChunkSize:        500,
			ChunkOverlap:     50,
			MaxChunks:        10000,
			EmbedBatchSize:   100,
			MaxFileSizeMB:    50,
			MinContentLength: 10,
		},
		Session: SessionSettings{
			MaxMessages:    20,
			PromptMessages: 12,
			TTL:            2 * time.Hour,
			MaxSessions:    500,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderGemini,
		AIProviderOpenAI,
		AIProviderOllama,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderGemini,
		AIProviderOpenAI,
		AIProviderOllama,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderGemini: "text-embedding-004",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderOllama: "nomic-embed-text",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderGemini: "gemini-2.0-flash",
		AIProviderOpenAI: "gpt-4o-mini",
		AIProviderOllama: "llama3.2",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Gemini models
		"text-embedding-004":   768,
		"gemini-embedding-001": 3072,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
	}
}
