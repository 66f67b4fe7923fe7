// Package docx normalises Word documents: body paragraphs form one section
// and every table its own section.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise extracts paragraphs and tables from word/document.xml.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a DOCX archive", domain.ErrInvalidInput)
	}

	body, err := readDocument(reader)
	if err != nil {
		return nil, err
	}

	var sections []domain.Section
	paragraphs := make([]string, 0, len(body.Paragraphs))
	for _, p := range body.Paragraphs {
		if text := strings.TrimSpace(p.text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) > 0 {
		sections = append(sections, domain.Section{
			Content:  strings.Join(paragraphs, "\n"),
			Metadata: map[string]any{"type": "paragraphs"},
		})
	}
	for i, tbl := range body.Tables {
		if text := tbl.text(); text != "" {
			sections = append(sections, domain.Section{
				Content:  text,
				Metadata: map[string]any{"type": "table", "table_index": i + 1},
			})
		}
	}

	meta := normalisers.CopyMetadata(raw.Metadata)
	meta["format"] = "docx"
	if title := readTitle(reader); title != "" {
		meta["title"] = title
	}
	return &driven.NormaliseResult{Sections: sections, Metadata: meta}, nil
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body bodyXML `xml:"body"`
}

type bodyXML struct {
	Paragraphs []paragraph `xml:"p"`
	Tables     []table     `xml:"tbl"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

type table struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []paragraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

func (p paragraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

// text renders non-empty cells joined by " | ", one line per row.
func (t table) text() string {
	lines := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		var cells []string
		for _, cell := range row.Cells {
			parts := make([]string, 0, len(cell.Paragraphs))
			for _, p := range cell.Paragraphs {
				if s := strings.TrimSpace(p.text()); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				cells = append(cells, strings.Join(parts, " "))
			}
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " | "))
		}
	}
	return strings.Join(lines, "\n")
}

func readPart(reader *zip.Reader, name string) ([]byte, bool, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, true, err
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		return content, true, err
	}
	return nil, false, nil
}

func readDocument(reader *zip.Reader) (bodyXML, error) {
	content, ok, err := readPart(reader, "word/document.xml")
	if err != nil {
		return bodyXML{}, fmt.Errorf("%w: read document.xml: %w", domain.ErrInvalidInput, err)
	}
	if !ok {
		return bodyXML{}, nil
	}
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return bodyXML{}, fmt.Errorf("%w: parse document.xml: %w", domain.ErrInvalidInput, err)
	}
	return doc.Body, nil
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

func readTitle(reader *zip.Reader) string {
	content, ok, err := readPart(reader, "docProps/core.xml")
	if err != nil || !ok {
		return ""
	}
	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
