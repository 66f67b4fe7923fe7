package driving

import (
	"context"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// IngestRequest asks for one file to be indexed.
type IngestRequest struct {
	// Path is the file to read.
	Path string

	// Metadata is attached to the document for filtering.
	Metadata domain.DocumentMetadata
}

// IngestResult is the outcome for one file of a batch.
type IngestResult struct {
	// Path is the file that was processed.
	Path string

	// Document is the stored document, nil if it was rejected before registration.
	Document *domain.Document

	// Err is the failure, nil on success.
	Err error
}

// DocumentService ingests and manages documents.
type DocumentService interface {
	// Ingest reads, normalises, chunks, embeds and stores one file.
	Ingest(ctx context.Context, req IngestRequest) (*domain.Document, error)

	// IngestBatch ingests several files. A failing file never stops the others.
	IngestBatch(ctx context.Context, reqs []IngestRequest) []IngestResult

	// List returns all documents.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetContent returns the concatenated content of all chunks.
	GetContent(ctx context.Context, documentID string) (string, error)

	// Delete removes a document with its chunks and embeddings.
	Delete(ctx context.Context, documentID string) error
}
