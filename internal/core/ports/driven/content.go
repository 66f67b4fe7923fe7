package driven

import (
	"context"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// ContentStore persists chunks with their embeddings and full-text index,
// and serves retrieval queries.
type ContentStore interface {
	// SaveChunks stores chunks for a document, replacing none.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// SaveEmbeddings stores vectors keyed by chunk ID.
	SaveEmbeddings(ctx context.Context, embeddings map[string][]float32, model string) error

	// DeleteDocumentChunks removes a document's chunks, embeddings and index entries.
	DeleteDocumentChunks(ctx context.Context, documentID string) error

	// BeginRead opens a consistent read view. Queries issued through the
	// returned reader see the same snapshot. A reader is not safe for
	// concurrent use and must be closed.
	BeginRead(ctx context.Context) (ContentReader, error)
}

// ContentReader runs retrieval queries against one read snapshot.
type ContentReader interface {
	// VectorSearch returns up to limit chunks by descending cosine similarity.
	VectorSearch(ctx context.Context, query []float32, limit int, filters domain.SearchFilters) ([]domain.RankedChunk, error)

	// LexicalSearch returns up to limit chunks by descending full-text relevance.
	LexicalSearch(ctx context.Context, query string, limit int, filters domain.SearchFilters) ([]domain.RankedChunk, error)

	// VectorSearchInDocument is VectorSearch restricted to one document.
	VectorSearchInDocument(ctx context.Context, documentID string, query []float32, limit int) ([]domain.RankedChunk, error)

	// Close ends the snapshot.
	Close() error
}
