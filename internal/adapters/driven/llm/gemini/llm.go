// Package gemini provides an LLM backend using the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"github.com/custodia-labs/obra/internal/adapters/driven/llm"
	"github.com/custodia-labs/obra/internal/core/domain"
)

// Ensure Backend implements the interface.
var _ llm.Backend = (*Backend)(nil)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Config holds configuration for the Gemini backend.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// Model is the model to use (default: gemini-2.0-flash).
	Model string
}

// Backend performs completions through genai.
// The client is created on first use.
type Backend struct {
	cfg Config

	once      sync.Once
	client    *genai.Client
	clientErr error
}

// NewBackend creates a Gemini backend.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Backend{cfg: cfg}, nil
}

func (b *Backend) getClient(ctx context.Context) (*genai.Client, error) {
	b.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:  b.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if b.cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: b.cfg.BaseURL}
		}
		b.client, b.clientErr = genai.NewClient(ctx, cc)
	})
	if b.clientErr != nil {
		return nil, fmt.Errorf("gemini: create client: %w", b.clientErr)
	}
	return b.client, nil
}

// Complete generates text for req.
func (b *Backend) Complete(ctx context.Context, req llm.Request) (string, error) {
	client, err := b.getClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens), //nolint:gosec // bounded by settings validation
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, b.cfg.Model, contents(req), config)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

// contents maps history and prompt onto Gemini turns.
func contents(req llm.Request) []*genai.Content {
	out := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return append(out, genai.NewContentFromText(req.Prompt, genai.RoleUser))
}

// IsRateLimited reports quota exhaustion (HTTP 429 or RESOURCE_EXHAUSTED).
func (b *Backend) IsRateLimited(err error) bool {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	// Value errors from the SDK still carry the status in their message.
	return llm.LooksRateLimited(err)
}

// ModelName returns the model identifier.
func (b *Backend) ModelName() string {
	return b.cfg.Model
}

// Ping fetches the model metadata to validate the key.
func (b *Backend) Ping(ctx context.Context) error {
	client, err := b.getClient(ctx)
	if err != nil {
		return err
	}
	if _, err := client.Models.Get(ctx, b.cfg.Model, nil); err != nil {
		return fmt.Errorf("gemini: %w", err)
	}
	return nil
}

// Close is a no-op; the genai client holds no resources to release.
func (b *Backend) Close() error {
	return nil
}
