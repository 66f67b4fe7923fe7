// Package pdf normalises PDF files into one section per page. Rows whose
// text fragments line up in columns are rebuilt as markdown tables so the
// model reads price lists cell by cell.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

const (
	// minColumns is the fewest fragments a row needs to count as tabular.
	minColumns = 3
	// alignTolerance is how far, in points, a column may drift between rows.
	alignTolerance = 12.0
	// minCellLength excludes short cells when removing table text from prose.
	minCellLength = 4
)

// boilerplate matches header and footer lines that repeat on every page of
// supplier quotes and purchase orders and carry no cost information.
var boilerplate = []*regexp.Regexp{
	regexp.MustCompile(`(?i)C\.?I\.?F\.?\s*:?\s*[A-Z]\d{7,8}`),
	regexp.MustCompile(`(?i)Tel\.?\s*\(\+?\d+\)\s*\d+`),
	regexp.MustCompile(`(?i)^www\.\S+$`),
	regexp.MustCompile(`(?i)P[áa]gina\s+\d+\s+de\s+\d+`),
	regexp.MustCompile(`(?i)^N[ºo°]\s*(PEDIDO|PROYECTO|PROVEEDOR|OFERTA)\s+\S+`),
	regexp.MustCompile(`(?i)^(RESPONSABLE DE COMPRA|DIRECCI[ÓO]N DE ENTREGA)`),
	regexp.MustCompile(`^[\d\s,.]+$`),
	regexp.MustCompile(`(?i)^(REF\.|UD\.|FABRICANTE|MEDIDA)(\s+(REF\.|UD\.|FABRICANTE|MEDIDA))*$`),
}

// Fragment is a run of text drawn at one horizontal position.
type Fragment struct {
	X    float64
	Text string
}

// Page is the extracted content of one PDF page. Rows are top to bottom,
// fragments within a row left to right.
type Page struct {
	Text string
	Rows [][]Fragment
}

// Normaliser handles PDF documents.
type Normaliser struct {
	extract func([]byte) ([]Page, error)
}

// New creates a PDF normaliser.
func New() *Normaliser {
	return &Normaliser{extract: readPages}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts every page. Pages left empty once boilerplate is
// removed are skipped; page numbers keep the PDF numbering.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	pages, err := n.extract(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	sections := make([]domain.Section, 0, len(pages))
	tables := 0
	for i, page := range pages {
		content, found := pageContent(page)
		if content == "" {
			continue
		}
		tables += found
		sections = append(sections, domain.Section{
			Content:  content,
			Page:     domain.IntPtr(i + 1),
			Metadata: map[string]any{"source": fmt.Sprintf("page_%d", i+1)},
		})
	}

	meta := normalisers.CopyMetadata(raw.Metadata)
	meta["format"] = "pdf"
	meta["total_pages"] = len(pages)
	meta["tables"] = tables
	return &driven.NormaliseResult{Sections: sections, Metadata: meta}, nil
}

// readPages extracts text and positioned rows from every page.
func readPages(content []byte) (pages []Page, err error) {
	// The parser panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	pages = make([]Page, r.NumPage())
	for i := range pages {
		p := r.Page(i + 1)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d rows: %w", i+1, err)
		}
		pages[i] = Page{Text: text, Rows: fragments(rows)}
	}
	return pages, nil
}

func fragments(rows pdf.Rows) [][]Fragment {
	// PDF y grows upwards.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })

	out := make([][]Fragment, 0, len(rows))
	for _, row := range rows {
		var frags []Fragment
		for _, t := range row.Content {
			if s := strings.TrimSpace(t.S); s != "" {
				frags = append(frags, Fragment{X: t.X, Text: s})
			}
		}
		sort.SliceStable(frags, func(i, j int) bool { return frags[i].X < frags[j].X })
		if len(frags) > 0 {
			out = append(out, frags)
		}
	}
	return out
}

// pageContent combines the page prose and its tables. Lines already shown
// in a table are dropped from the prose.
func pageContent(page Page) (string, int) {
	tables := findTables(page.Rows)
	text := normalisers.CleanText(page.Text)
	if len(tables) > 0 {
		text = removeTableLines(text, tables)
	}
	text = removeBoilerplate(text)

	var parts []string
	if text != "" {
		parts = append(parts, text)
	}
	for _, t := range tables {
		parts = append(parts, toMarkdown(t))
	}
	return strings.Join(parts, "\n\n"), len(tables)
}

// findTables groups runs of at least two consecutive rows that have the same
// number of fragments, at least minColumns, in aligned columns.
func findTables(rows [][]Fragment) [][][]string {
	var tables [][][]string
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && aligned(rows[j-1], rows[j]) {
			j++
		}
		if j-i >= 2 {
			table := make([][]string, 0, j-i)
			for _, row := range rows[i:j] {
				cells := make([]string, len(row))
				for k, f := range row {
					cells[k] = strings.Join(strings.Fields(f.Text), " ")
				}
				table = append(table, cells)
			}
			tables = append(tables, table)
		}
		i = j
	}
	return tables
}

func aligned(a, b []Fragment) bool {
	if len(a) < minColumns || len(a) != len(b) {
		return false
	}
	for k := range a {
		if math.Abs(a[k].X-b[k].X) > alignTolerance {
			return false
		}
	}
	return true
}

func toMarkdown(table [][]string) string {
	var b strings.Builder
	for i, row := range table {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			b.WriteString("|" + strings.Repeat(" --- |", len(row)) + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// removeTableLines drops prose lines that repeat a table cell.
func removeTableLines(text string, tables [][][]string) string {
	var cells []string
	for _, t := range tables {
		for _, row := range t {
			for _, c := range row {
				if len([]rune(c)) >= minCellLength {
					cells = append(cells, c)
				}
			}
		}
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !repeatsCell(strings.TrimSpace(line), cells) {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func repeatsCell(line string, cells []string) bool {
	if line == "" {
		return false
	}
	for _, c := range cells {
		if strings.Contains(line, c) || strings.Contains(c, line) {
			return true
		}
	}
	return false
}

func removeBoilerplate(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !isBoilerplate(line) {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isBoilerplate(line string) bool {
	for _, re := range boilerplate {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
