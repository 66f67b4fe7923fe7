// Package limit caps the number of chunks stored per document.
package limit

import (
	"context"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/logger"
)

// DefaultMaxChunks is the default cap.
const DefaultMaxChunks = 10000

// Processor keeps the first max chunks and drops the rest.
type Processor struct {
	max int
}

// New creates a limit processor. Non-positive values use DefaultMaxChunks.
func New(maxChunks int) *Processor {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &Processor{max: maxChunks}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "limit"
}

// Process truncates chunks to the cap.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if len(chunks) <= p.max {
		return chunks, nil
	}
	logger.Warn("Document %s: %d chunks, keeping the first %d", doc.Filename, len(chunks), p.max)
	return chunks[:p.max], nil
}
