// Package plaintext normalises plain text files.
package plaintext

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/normalisers"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// pageBreak separates pages in text exported from paginated documents.
const pageBreak = "\f"

// Normaliser turns a text file into one section, or one section per page
// when the text carries form feeds.
type Normaliser struct{}

// New creates a plain text normaliser.
func New() *Normaliser { return &Normaliser{} }

// SupportedMIMETypes returns text/plain.
func (n *Normaliser) SupportedMIMETypes() []string { return []string{"text/plain"} }

// Priority is low so format-specific normalisers win.
func (n *Normaliser) Priority() int { return 5 }

// Normalise decodes and cleans the text. Blank pages are dropped but keep
// their number so page provenance matches the source.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	text := normalisers.DecodeText(raw.Content)
	pages := strings.Split(text, pageBreak)
	paged := len(pages) > 1

	var sections []domain.Section
	lines := 0
	for i, page := range pages {
		content := normalisers.CleanText(page)
		if content == "" {
			continue
		}
		lines += strings.Count(content, "\n") + 1
		section := domain.Section{Content: content}
		if paged {
			section.Page = domain.IntPtr(i + 1)
		}
		sections = append(sections, section)
	}

	meta := normalisers.CopyMetadata(raw.Metadata)
	meta["format"] = "text"
	meta["source"] = filepath.Base(raw.Filename)
	meta["total_lines"] = lines
	if paged {
		meta["total_pages"] = len(pages)
	}
	return &driven.NormaliseResult{Sections: sections, Metadata: meta}, nil
}
