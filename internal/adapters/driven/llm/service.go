// Package llm implements driven.LLMService on top of a provider Backend.
//
// Provider packages only translate a Request into an API call. Pacing,
// retries on rate limiting, error mapping and prompt assembly live here so
// every provider behaves the same way.
package llm

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/logger"
	"github.com/custodia-labs/obra/internal/prompts"
)

// Ensure Service implements the interfaces.
var (
	_ driven.LLMService       = (*Service)(nil)
	_ driven.PromptStoreAware = (*Service)(nil)
)

// Default configuration values.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 10 * time.Second
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048

	// GroundedTemperature is used when answering from retrieved evidence.
	GroundedTemperature = 0.1
)

// Request is one provider-neutral completion call.
type Request struct {
	System      string
	History     []domain.ChatMessage
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Backend performs raw completions against one provider.
type Backend interface {
	// Complete returns the generated text for req.
	Complete(ctx context.Context, req Request) (string, error)

	// IsRateLimited reports whether err is a quota or rate limit rejection.
	IsRateLimited(err error) bool

	// ModelName returns the model identifier.
	ModelName() string

	// Ping makes a lightweight request to validate credentials.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Config tunes the shared generation policy.
type Config struct {
	// Temperature is the default sampling temperature. Zero uses 0.7.
	Temperature float64

	// MaxTokens bounds generated output (default: 2048).
	MaxTokens int

	// RequestsPerMinute paces calls. Zero disables pacing.
	RequestsPerMinute int

	// MaxAttempts bounds calls per generation when rate limited (default: 3).
	MaxAttempts int

	// Backoff is multiplied by the attempt number between retries (default: 10s).
	Backoff time.Duration
}

// Service wraps a Backend with pacing, retries and prompt handling.
type Service struct {
	backend     Backend
	limiter     *rate.Limiter
	temperature float64
	maxTokens   int
	maxAttempts int
	backoff     time.Duration
	promptStore driven.PromptStore
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a Service around backend.
func New(backend Backend, cfg Config) *Service {
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Service{
		backend:     backend,
		limiter:     limiter,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		sleep:       sleepContext,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *Service) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// Generate produces text from a prompt.
func (s *Service) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := Request{
		System:      opts.SystemPrompt,
		History:     opts.History,
		Prompt:      prompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	return s.complete(ctx, req)
}

// GenerateWithContext answers query from the numbered evidence fragments.
func (s *Service) GenerateWithContext(
	ctx context.Context,
	query string,
	fragments []string,
	history []domain.ChatMessage,
) (string, error) {
	return s.complete(ctx, Request{
		System:      prompts.Resolve(s.promptStore, driven.PromptRAGSystem),
		History:     history,
		Prompt:      prompts.ContextPrompt(s.promptStore, query, fragments),
		Temperature: GroundedTemperature,
		MaxTokens:   s.maxTokens,
	})
}

// GenerateMarketPriceEstimate answers query from general market knowledge.
func (s *Service) GenerateMarketPriceEstimate(
	ctx context.Context,
	query string,
	history []domain.ChatMessage,
) (string, error) {
	return s.complete(ctx, Request{
		System:      prompts.Resolve(s.promptStore, driven.PromptMarketEstimate),
		History:     history,
		Prompt:      query,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
}

// ModelName returns the backend model.
func (s *Service) ModelName() string {
	return s.backend.ModelName()
}

// Ping validates the backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the backend.
func (s *Service) Close() error {
	return s.backend.Close()
}

// complete runs req with pacing and retries, mapping failures to domain errors.
func (s *Service) complete(ctx context.Context, req Request) (string, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				// The limiter fails early when the deadline would pass first.
				return "", waitError(ctx)
			}
		}

		text, err := s.backend.Complete(ctx, req)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !s.backend.IsRateLimited(err) {
			logger.L().Errorw("generation failed", "model", s.backend.ModelName(), "error", err)
			return "", domain.ErrGenerationFailed
		}

		logger.Warn("Rate limited by %s (attempt %d/%d)", s.backend.ModelName(), attempt, s.maxAttempts)
		if attempt == s.maxAttempts {
			break
		}
		if err := s.sleep(ctx, s.backoff*time.Duration(attempt)); err != nil {
			return "", err
		}
	}
	return "", domain.ErrGenerationSaturated
}

func waitError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.DeadlineExceeded
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LooksRateLimited matches provider messages that signal quota exhaustion.
// Backends use it when the SDK error carries no status code.
func LooksRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "quota", "resource_exhausted", "rate limit"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
