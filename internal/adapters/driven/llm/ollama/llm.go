// Package ollama provides an LLM backend using a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/custodia-labs/obra/internal/adapters/driven/llm"
	"github.com/custodia-labs/obra/internal/core/domain"
)

// Ensure Backend implements the interface.
var _ llm.Backend = (*Backend)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the Ollama backend.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Backend performs chat completions through the Ollama /api/chat endpoint.
type Backend struct {
	client *api.Client
	model  string
}

// NewBackend validates the base URL. It does not contact the server.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base URL %q: %w", cfg.BaseURL, err)
	}

	return &Backend{
		client: api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
	}, nil
}

// Complete generates text for req in a single non-streamed response.
func (b *Backend) Complete(ctx context.Context, req llm.Request) (string, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:    b.model,
		Messages: messages(req),
		Stream:   &stream,
		Options:  map[string]any{"temperature": req.Temperature},
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}

	var (
		content string
		done    bool
	)
	err := b.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		done = done || resp.Done
		return nil
	})
	if err != nil {
		return "", err
	}
	if !done {
		return "", errors.New("ollama: response ended before completion")
	}
	return content, nil
}

// messages maps the system prompt, history and prompt onto chat messages.
func messages(req llm.Request) []api.Message {
	out := make([]api.Message, 0, len(req.History)+2)
	if req.System != "" {
		out = append(out, api.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.History {
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "assistant"
		}
		out = append(out, api.Message{Role: role, Content: m.Content})
	}
	return append(out, api.Message{Role: "user", Content: req.Prompt})
}

// IsRateLimited reports HTTP 429 responses, which Ollama sends when its
// request queue is full.
func (b *Backend) IsRateLimited(err error) bool {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// ModelName returns the model identifier.
func (b *Backend) ModelName() string {
	return b.model
}

// Ping lists the local models, which needs no inference.
func (b *Backend) Ping(ctx context.Context) error {
	if _, err := b.client.List(ctx); err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	return nil
}

// Close is a no-op for the HTTP client.
func (b *Backend) Close() error {
	return nil
}
