package driven

import "context"

// EmbeddingService turns text into vectors. Every vector a service returns
// has Dimensions() components; chunks and queries must be embedded by the
// same model for cosine scores to mean anything.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int
	ModelName() string

	// Ping issues the cheapest request the provider accepts.
	Ping(ctx context.Context) error

	Close() error
}
