package domain

// SearchFilters restricts retrieval to documents with matching metadata.
// Zero values mean "no constraint". Set fields are AND-combined exact matches.
type SearchFilters struct {
	DocumentType   string
	Category       string
	GeographicZone string
	PriceYear      *int
}

// IsEmpty returns true if no filter is set.
func (f SearchFilters) IsEmpty() bool {
	return f.DocumentType == "" && f.Category == "" && f.GeographicZone == "" && f.PriceYear == nil
}

// Matches reports whether a document's metadata satisfies every set filter.
func (f SearchFilters) Matches(m DocumentMetadata) bool {
	if f.DocumentType != "" && f.DocumentType != m.DocumentType {
		return false
	}
	if f.Category != "" && f.Category != m.Category {
		return false
	}
	if f.GeographicZone != "" && f.GeographicZone != m.GeographicZone {
		return false
	}
	if f.PriceYear != nil && (m.PriceYear == nil || *m.PriceYear != *f.PriceYear) {
		return false
	}
	return true
}

// SearchRequest is the input to hybrid retrieval.
type SearchRequest struct {
	// Query is the free-text query.
	Query string

	// MaxResults bounds the number of results returned.
	MaxResults int

	// Filters restricts the candidate documents.
	Filters SearchFilters

	// MinScore drops results whose normalised score is below it. Zero disables the gate.
	MinScore float64
}

// RankedChunk is a retrieved chunk with its relevance score.
type RankedChunk struct {
	// ChunkID identifies the chunk.
	ChunkID string

	// DocumentID identifies the parent document.
	DocumentID string

	// Filename is the parent document's filename.
	Filename string

	// Content is the chunk text.
	Content string

	// Score is the per-source score before fusion and the normalised
	// fused score afterwards.
	Score float64

	// Page is the source page, when known.
	Page *int

	// Row is the source row, when known.
	Row *int

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}
