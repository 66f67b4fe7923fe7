package domain

import "time"

// DocumentStatus tracks a document through ingestion.
type DocumentStatus string

// Document processing states.
const (
	// StatusPending means the document is registered but not yet processed.
	StatusPending DocumentStatus = "pending"

	// StatusProcessing means chunks and embeddings are being generated.
	StatusProcessing DocumentStatus = "processing"

	// StatusCompleted means the document is fully indexed.
	StatusCompleted DocumentStatus = "completed"

	// StatusFailed means ingestion stopped with an error.
	StatusFailed DocumentStatus = "failed"
)

// IsTerminal returns true once ingestion has finished either way.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DocumentMetadata holds the attributes retrieval filters match against.
type DocumentMetadata struct {
	// DocumentType classifies the source (e.g. "tarifa", "presupuesto", "bc3").
	DocumentType string

	// Category is a free-form trade category (e.g. "estructuras").
	Category string

	// GeographicZone is the region the prices apply to.
	GeographicZone string

	// PriceYear is the year the prices refer to.
	PriceYear *int
}

// Document represents an ingested file.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the sanitised name stored and shown in provenance.
	Filename string

	// OriginalFilename is the name as supplied by the user.
	OriginalFilename string

	// Path is where the file was read from.
	Path string

	// MIMEType is the detected content type.
	MIMEType string

	// Size is the file size in bytes.
	Size int64

	// Status is the ingestion state.
	Status DocumentStatus

	// ErrorMessage is set when Status is StatusFailed.
	ErrorMessage string

	// ChunkCount is the number of chunks stored for the document.
	ChunkCount int

	// Metadata holds filterable attributes.
	Metadata DocumentMetadata

	// CreatedAt is when the document was first registered.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// Chunk represents a retrievable unit within a document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Position is the ordinal position within the document.
	Position int

	// Content is the text content of this chunk.
	Content string

	// Page is the 1-based source page, when known.
	Page *int

	// Row is the 1-based source row, when known.
	Row *int

	// Embedding is the vector representation for semantic search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// Section is a piece of extracted text with its provenance, before chunking.
type Section struct {
	// Content is the extracted text.
	Content string

	// Page is the 1-based source page, when known.
	Page *int

	// Row is the 1-based source row, when known.
	Row *int

	// Metadata is copied onto every chunk cut from this section.
	Metadata map[string]any
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
