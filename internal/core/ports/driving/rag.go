package driving

import (
	"context"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// RAGService answers cost questions from indexed evidence.
type RAGService interface {
	// Query retrieves evidence and generates an answer, falling back to a
	// labelled market estimate when no evidence is relevant.
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error)

	// ClearSession forgets a conversation.
	ClearSession(sessionID string) bool
}

// BudgetService builds BC3 budget files from retrieved line items.
type BudgetService interface {
	// GenerateBC3 searches each query, extracts line items and serialises them.
	GenerateBC3(ctx context.Context, req domain.BC3Request) (*domain.BC3Result, error)
}
