package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

func withPages(pages []Page, err error) *Normaliser {
	return &Normaliser{extract: func([]byte) ([]Page, error) { return pages, err }}
}

func rawPDF(content []byte) *domain.RawDocument {
	return &domain.RawDocument{
		Filename: "oferta.pdf",
		MIMEType: "application/pdf",
		Content:  content,
		Metadata: map[string]any{"document_type": "oferta"},
	}
}

func row(cells ...any) []Fragment {
	var frags []Fragment
	for i := 0; i < len(cells); i += 2 {
		frags = append(frags, Fragment{X: cells[i].(float64), Text: cells[i+1].(string)})
	}
	return frags
}

// buildPDF writes a one-page PDF drawing each fragment at its position.
func buildPDF(t *testing.T, lines map[float64][]Fragment) []byte {
	t.Helper()
	var stream strings.Builder
	for y, frags := range lines {
		for _, f := range frags {
			fmt.Fprintf(&stream, "BT /F1 10 Tf %.0f %.0f Td (%s) Tj ET\n", f.X, y, f.Text)
		}
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", stream.Len(), stream.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
	n := New()
	assert.Equal(t, []string{"application/pdf"}, n.SupportedMIMETypes())
	assert.Equal(t, 50, n.Priority())
}

func TestNormalise_PagesAndBoilerplate(t *testing.T) {
	n := withPages([]Page{
		{Text: "OFERTA 2024\nCIF: B12345678\nTubería PVC 110 mm    8,50 €/ml\nPágina 1 de 3\n"},
		{Text: "\n  \n"},
		{Text: "Válvula de bola 1\"   14,20 €/ud\n1.234,56\n"},
	}, nil)

	result, err := n.Normalise(context.Background(), rawPDF(nil))

	require.NoError(t, err)
	require.Len(t, result.Sections, 2)
	assert.Equal(t, "OFERTA 2024\nTubería PVC 110 mm 8,50 €/ml", result.Sections[0].Content)
	assert.Equal(t, 1, *result.Sections[0].Page)
	assert.Equal(t, "Válvula de bola 1\" 14,20 €/ud", result.Sections[1].Content)
	assert.Equal(t, 3, *result.Sections[1].Page)
	assert.Equal(t, "page_3", result.Sections[1].Metadata["source"])
	assert.Equal(t, 3, result.Metadata["total_pages"])
	assert.Equal(t, 0, result.Metadata["tables"])
	assert.Equal(t, "pdf", result.Metadata["format"])
	assert.Equal(t, "oferta", result.Metadata["document_type"])
}

func TestNormalise_TablesBecomeMarkdown(t *testing.T) {
	n := withPages([]Page{{
		Text: "TARIFA DE FÁBRICAS\nDescripción Ud Precio\nTabique LHD 7 cm m2 18,40\nTabique LHD 9 cm m2 21,10\nPágina 1 de 1",
		Rows: [][]Fragment{
			row(72.0, "TARIFA DE FÁBRICAS"),
			row(72.0, "Descripción", 300.0, "Ud", 400.0, "Precio"),
			row(72.0, "Tabique LHD 7 cm", 301.0, "m2", 395.0, "18,40"),
			row(72.0, "Tabique  LHD 9 cm", 300.0, "m2", 395.0, "21,10"),
			row(250.0, "Página 1 de 1"),
		},
	}}, nil)

	result, err := n.Normalise(context.Background(), rawPDF(nil))

	require.NoError(t, err)
	require.Len(t, result.Sections, 1)
	assert.Equal(t, "TARIFA DE FÁBRICAS\n\n"+
		"| Descripción | Ud | Precio |\n"+
		"| --- | --- | --- |\n"+
		"| Tabique LHD 7 cm | m2 | 18,40 |\n"+
		"| Tabique LHD 9 cm | m2 | 21,10 |", result.Sections[0].Content)
	assert.Equal(t, 1, result.Metadata["tables"])
}

func TestNormalise_ExtractError(t *testing.T) {
	result, err := withPages(nil, errors.New("not a pdf")).Normalise(context.Background(), rawPDF(nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read pdf")
	assert.Nil(t, result)
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_RealPDF(t *testing.T) {
	content := buildPDF(t, map[float64][]Fragment{
		700: {{X: 72, Text: "Concepto"}, {X: 300, Text: "Ud"}, {X: 400, Text: "Precio"}},
		680: {{X: 72, Text: "Tabique LHD"}, {X: 300, Text: "m2"}, {X: 400, Text: "18,40"}},
	})

	result, err := New().Normalise(context.Background(), rawPDF(content))

	require.NoError(t, err)
	require.Len(t, result.Sections, 1)
	assert.Equal(t, 1, *result.Sections[0].Page)
	assert.Contains(t, result.Sections[0].Content, "| Tabique LHD | m2 | 18,40 |")
	assert.Equal(t, 1, result.Metadata["total_pages"])
}

func TestNormalise_NotAPDF(t *testing.T) {
	_, err := New().Normalise(context.Background(), rawPDF([]byte("%PDF-1.4 truncated")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read pdf")
}

func TestFindTables(t *testing.T) {
	tests := []struct {
		name string
		rows [][]Fragment
		want int
	}{
		{"single row", [][]Fragment{row(0.0, "a", 100.0, "b", 200.0, "c")}, 0},
		{"two columns", [][]Fragment{row(0.0, "a", 100.0, "b"), row(0.0, "c", 100.0, "d")}, 0},
		{"misaligned", [][]Fragment{row(0.0, "a", 100.0, "b", 200.0, "c"), row(0.0, "d", 150.0, "e", 200.0, "f")}, 0},
		{"aligned", [][]Fragment{row(0.0, "a", 100.0, "b", 200.0, "c"), row(5.0, "d", 104.0, "e", 190.0, "f")}, 1},
		{"split by prose", [][]Fragment{
			row(0.0, "a", 100.0, "b", 200.0, "c"), row(0.0, "d", 100.0, "e", 200.0, "f"),
			row(0.0, "Notas"),
			row(0.0, "g", 100.0, "h", 200.0, "i"), row(0.0, "j", 100.0, "k", 200.0, "l"),
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, findTables(tt.rows), tt.want)
		})
	}
}

func TestRemoveTableLines(t *testing.T) {
	tables := [][][]string{{{"Mortero M-5", "m3", "95,00"}}}

	got := removeTableLines("Condiciones generales\nMortero M-5 m3 95,00\nm3", tables)

	// Cells shorter than four runes never match.
	assert.Equal(t, "Condiciones generales\nm3", got)
}

func TestIsBoilerplate(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Página 2 de 10", true},
		{"C.I.F.: A28000000", true},
		{"Nº PEDIDO 4500123", true},
		{"REF. UD.", true},
		{"1.250,00", true},
		{"www.proveedor.com", true},
		{"Hormigón HA-25/B/20/IIa 85,00 €/m3", false},
		{"Referencia 1234 ladrillo", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isBoilerplate(tt.line), tt.line)
	}
}
