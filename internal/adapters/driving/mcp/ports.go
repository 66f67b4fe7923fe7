package mcp

import (
	"github.com/custodia-labs/obra/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides hybrid retrieval.
	Search driving.SearchService

	// RAG answers cost questions.
	RAG driving.RAGService

	// Budget generates BC3 files.
	Budget driving.BudgetService

	// Document lists indexed documents and their content.
	Document driving.DocumentService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Tools backed by a missing port answer with errServiceUnavailable.
	return nil
}
