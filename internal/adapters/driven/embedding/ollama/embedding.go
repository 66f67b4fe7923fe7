// Package ollama embeds text with a local Ollama server through its /api/embed endpoint.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768

	// batchSize bounds one request so a large PDF does not exhaust server memory.
	batchSize = 64
)

// Config selects the server and model. Zero values take the defaults.
// Dimensions left at zero for a model other than the default is learned
// from the first response.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService is safe for concurrent use.
type EmbeddingService struct {
	client     *api.Client
	model      string
	dimensions atomic.Int64
}

// NewEmbeddingService validates the base URL. It does not contact the server.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 && cfg.Model == DefaultModel {
		cfg.Dimensions = DefaultDimensions
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base URL %q: %w", cfg.BaseURL, err)
	}

	s := &EmbeddingService{
		client: api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
	}
	s.dimensions.Store(int64(cfg.Dimensions))
	return s, nil
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends texts in groups of batchSize. Every vector must have
// the same length as the first one the service ever saw.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		group := texts[start:min(start+batchSize, len(texts))]

		resp, err := s.client.Embed(ctx, &api.EmbedRequest{Model: s.model, Input: group})
		if err != nil {
			return nil, fmt.Errorf("ollama: embed: %w", err)
		}
		if len(resp.Embeddings) != len(group) {
			return nil, fmt.Errorf("ollama: got %d embeddings for %d texts", len(resp.Embeddings), len(group))
		}
		for _, vec := range resp.Embeddings {
			if err := s.checkSize(len(vec)); err != nil {
				return nil, err
			}
		}
		out = append(out, resp.Embeddings...)
	}
	return out, nil
}

func (s *EmbeddingService) checkSize(n int) error {
	if s.dimensions.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want := s.dimensions.Load(); int64(n) != want {
		return fmt.Errorf("ollama: %s returned %d dimensions, expected %d", s.model, n, want)
	}
	return nil
}

// Dimensions is zero until known.
func (s *EmbeddingService) Dimensions() int {
	return int(s.dimensions.Load())
}

func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists the local models, which needs no inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.client.List(ctx); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

func (s *EmbeddingService) Close() error {
	return nil
}
