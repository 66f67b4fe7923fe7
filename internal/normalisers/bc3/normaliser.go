// Package bc3 normalises FIEBDC-3 budget files into one section per concept.
package bc3

import (
	"context"

	codec "github.com/custodia-labs/obra/internal/bc3"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// MIMEType is the content type assigned to .bc3 files.
const MIMEType = "application/x-fiebdc"

// Normaliser handles BC3 documents.
type Normaliser struct {
	minContentLength int
}

// New creates a BC3 normaliser. Concept blocks shorter than minContentLength
// runes are dropped; zero uses the codec default.
func New(minContentLength int) *Normaliser {
	if minContentLength == 0 {
		minContentLength = codec.DefaultMinContentLength
	}
	return &Normaliser{minContentLength: minContentLength}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 80 // Format-specific
}

// Normalise decodes the budget and renders every concept as labelled text.
// Undecodable input fails with domain.ErrDecode.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	budget, err := codec.ParseDocument(raw.Content)
	if err != nil {
		return nil, err
	}

	chunks := budget.Chunks(codec.WithMinContentLength(n.minContentLength))
	sections := make([]domain.Section, len(chunks))
	for i, c := range chunks {
		sections[i] = domain.Section{Content: c.Content, Metadata: c.Metadata}
	}

	meta := normalisers.CopyMetadata(raw.Metadata)
	meta["format"] = "bc3"
	meta["bc3_records"] = len(budget.Records)
	meta["bc3_concepts"] = len(budget.Concepts)
	return &driven.NormaliseResult{Sections: sections, Metadata: meta}, nil
}
