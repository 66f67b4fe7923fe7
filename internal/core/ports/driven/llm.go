package driven

import (
	"context"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// LLMService is the generative model used to answer cost questions.
//
// Implementations retry on rate limiting and then fail with
// domain.ErrGenerationSaturated. Every other failure is reported as
// domain.ErrGenerationFailed; the provider's message is logged, not returned.
//
// Implementations may include:
//   - Gemini (gemini-2.0-flash, gemini-1.5-pro)
//   - OpenAI and OpenAI-compatible servers
type LLMService interface {
	// Generate produces text from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateWithContext answers query grounded on the context fragments.
	GenerateWithContext(ctx context.Context, query string, fragments []string, history []domain.ChatMessage) (string, error)

	// GenerateMarketPriceEstimate answers query from general market knowledge
	// when no indexed evidence is relevant.
	GenerateMarketPriceEstimate(ctx context.Context, query string, history []domain.ChatMessage) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// SystemPrompt sets the model's persona and rules. Empty uses none.
	SystemPrompt string

	// MaxTokens is the maximum number of tokens to generate. Zero uses the service default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	// Nil uses the service default.
	Temperature *float64

	// History is prior conversation, oldest first.
	History []domain.ChatMessage
}
