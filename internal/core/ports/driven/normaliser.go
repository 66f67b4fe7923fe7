package driven

import (
	"context"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// Normaliser extracts text sections from a file.
// Each normaliser handles specific MIME types (e.g., PDF, BC3).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts the sections of a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Chunking is handled by the PostProcessor pipeline.
type NormaliseResult struct {
	// Sections is the extracted text with page or row provenance.
	Sections []domain.Section

	// Metadata is merged into the document's metadata.
	Metadata map[string]any
}
