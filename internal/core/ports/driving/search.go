package driving

import (
	"context"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// SearchService provides hybrid retrieval to external actors.
type SearchService interface {
	// Search fuses vector and full-text retrieval into one ranked list.
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.RankedChunk, error)

	// SearchWithinDocument runs vector retrieval restricted to one document.
	SearchWithinDocument(ctx context.Context, documentID, query string, maxResults int) ([]domain.RankedChunk, error)
}
