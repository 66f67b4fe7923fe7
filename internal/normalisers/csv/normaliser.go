// Package csv normalises delimited tables into one section per row.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles CSV documents.
type Normaliser struct{}

// New creates a new CSV normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/csv"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 60
}

// Normalise renders each data row as "column: value | column: value".
// Empty cells are omitted and rows with no values are skipped. Row numbers
// are 1-based and exclude the header.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := normalisers.DecodeText(raw.Content)
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = detectDelimiter(content)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &driven.NormaliseResult{Metadata: metadata(raw, 0)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", domain.ErrInvalidInput, err)
	}
	columns := columnNames(header)

	var sections []domain.Section
	total := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read row %d: %w", domain.ErrInvalidInput, total+1, err)
		}
		total++

		line := rowText(columns, record)
		if line == "" {
			continue
		}
		sections = append(sections, domain.Section{
			Content:  line,
			Row:      domain.IntPtr(total),
			Metadata: map[string]any{"source": fmt.Sprintf("row_%d", total)},
		})
	}

	return &driven.NormaliseResult{Sections: sections, Metadata: metadata(raw, total)}, nil
}

func metadata(raw *domain.RawDocument, rows int) map[string]any {
	meta := normalisers.CopyMetadata(raw.Metadata)
	meta["format"] = "csv"
	meta["total_rows"] = rows
	return meta
}

// detectDelimiter picks ';' or tab over ',' when they dominate the first line.
// Spanish spreadsheet exports use ';' because ',' is the decimal separator.
func detectDelimiter(content string) rune {
	first, _, _ := strings.Cut(content, "\n")
	best, count := ',', strings.Count(first, ",")
	for _, d := range []rune{';', '\t'} {
		if c := strings.Count(first, string(d)); c > count {
			best, count = d, c
		}
	}
	return best
}

func columnNames(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("columna %d", i+1)
		}
		columns[i] = h
	}
	return columns
}

func rowText(columns, record []string) string {
	parts := make([]string, 0, len(record))
	for i, value := range record {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		name := fmt.Sprintf("columna %d", i+1)
		if i < len(columns) {
			name = columns[i]
		}
		parts = append(parts, name+": "+value)
	}
	return strings.Join(parts, " | ")
}
