package driven

import (
	"context"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// PostProcessor transforms chunks.
// PostProcessors are chained in a pipeline (e.g., splitting, capping).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process receives chunks and returns the transformed chunks.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the chunks through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}
