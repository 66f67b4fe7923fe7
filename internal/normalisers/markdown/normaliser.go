// Package markdown normalises Markdown files into one section per top-level heading.
package markdown

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// sectionLevel is the deepest heading that starts a new section.
const sectionLevel = 2

// Normaliser handles Markdown documents.
type Normaliser struct {
	md goldmark.Markdown
}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{md: goldmark.New(goldmark.WithExtensions(extension.Table))}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise renders the document as plain text, split at level 1 and 2 headings.
// Tables become "cell | cell" lines; images are dropped.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	source := []byte(normalisers.DecodeText(raw.Content))
	root := n.md.Parser().Parse(text.NewReader(source))

	var (
		sections []domain.Section
		title    string
		heading  string
		body     strings.Builder
	)
	flush := func() {
		content := normalisers.CleanText(body.String())
		if content != "" {
			sec := domain.Section{Content: content}
			if heading != "" {
				sec.Metadata = map[string]any{"section": heading}
			}
			sections = append(sections, sec)
		}
		body.Reset()
	}

	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := node.(type) {
		case *ast.Heading:
			line := inlineText(node, source)
			if node.Level <= sectionLevel {
				flush()
				heading = line
			}
			if node.Level == 1 && title == "" {
				title = line
			}
			body.WriteString(line + "\n")
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			body.WriteString(inlineText(node, source) + "\n")
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				body.Write(seg.Value(source))
			}
			body.WriteString("\n")
			return ast.WalkSkipChildren, nil
		case *extast.TableHeader, *extast.TableRow:
			var cells []string
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				cells = append(cells, strings.TrimSpace(inlineText(c, source)))
			}
			body.WriteString(strings.Join(cells, " | ") + "\n")
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	flush()

	meta := normalisers.CopyMetadata(raw.Metadata)
	meta["format"] = "markdown"
	if title != "" {
		meta["title"] = title
	}
	return &driven.NormaliseResult{Sections: sections, Metadata: meta}, nil
}

// inlineText concatenates the text under node, dropping formatting markers.
func inlineText(node ast.Node, source []byte) string {
	var b strings.Builder
	writeInline(&b, node, source)
	return b.String()
}

func writeInline(b *strings.Builder, node ast.Node, source []byte) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink:
			b.Write(c.URL(source))
		case *ast.Image:
			// Alt text rarely carries pricing information.
		default:
			writeInline(b, c, source)
		}
	}
}
