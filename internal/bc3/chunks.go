package bc3

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultMinContentLength is the shortest rendered block kept by BuildChunks.
const DefaultMinContentLength = 10

// Concept classifications stored in chunk metadata.
const (
	TypeChapter  = "capitulo"
	TypeLineItem = "partida"
)

// Labels used when rendering concepts as text. The line item extractor
// reads the same labels back.
const (
	LabelChapter       = "Capítulo:"
	LabelCode          = "Código:"
	LabelSummary       = "Concepto:"
	LabelUnit          = "Unidad:"
	LabelPrice         = "Precio:"
	LabelDescription   = "Descripción:"
	LabelDecomposition = "Descomposición:"
	LabelQuantity      = "Cantidad:"
)

// Chunk is the rendered text block for one concept.
type Chunk struct {
	Code     string
	Content  string
	Metadata map[string]any
}

type chunkOptions struct {
	minContentLength int
}

// ChunkOption configures BuildChunks.
type ChunkOption func(*chunkOptions)

// WithMinContentLength sets the shortest block kept. Non-positive values keep everything.
func WithMinContentLength(n int) ChunkOption {
	return func(o *chunkOptions) {
		o.minContentLength = n
	}
}

// BuildChunks renders one text block per concept, ordered by code.
// Blocks shorter than the minimum content length are dropped.
// References to codes missing from concepts are ignored.
func BuildChunks(
	concepts map[string]Concept,
	decompositions map[string][]Component,
	texts map[string]string,
	hierarchy map[string][]string,
	opts ...ChunkOption,
) []Chunk {
	o := chunkOptions{minContentLength: DefaultMinContentLength}
	for _, opt := range opts {
		opt(&o)
	}

	parents := parentIndex(hierarchy)

	codes := make([]string, 0, len(concepts))
	for code := range concepts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	chunks := make([]Chunk, 0, len(codes))
	for _, code := range codes {
		concept := concepts[code]

		chapter := ""
		if parent, ok := parents[code]; ok {
			if pc, ok := concepts[parent]; ok {
				chapter = pc.Summary
				if chapter == "" {
					chapter = parent
				}
			}
		}

		content := renderConcept(concept, chapter, texts[code], decompositions[code], concepts)
		if len([]rune(strings.TrimSpace(content))) < o.minContentLength {
			continue
		}

		conceptType := TypeLineItem
		if _, isParent := hierarchy[code]; isParent {
			conceptType = TypeChapter
		}

		chunks = append(chunks, Chunk{
			Code:    code,
			Content: content,
			Metadata: map[string]any{
				"source":      "bc3",
				"bc3_code":    code,
				"bc3_unit":    concept.Unit,
				"bc3_price":   concept.Price,
				"bc3_type":    conceptType,
				"bc3_chapter": chapter,
			},
		})
	}

	return chunks
}

// parentIndex maps each child code to the first parent listing it,
// visiting parents in code order.
func parentIndex(hierarchy map[string][]string) map[string]string {
	parentCodes := make([]string, 0, len(hierarchy))
	for parent := range hierarchy {
		parentCodes = append(parentCodes, parent)
	}
	sort.Strings(parentCodes)

	index := make(map[string]string)
	for _, parent := range parentCodes {
		for _, child := range hierarchy[parent] {
			if _, seen := index[child]; !seen {
				index[child] = parent
			}
		}
	}
	return index
}

func renderConcept(c Concept, chapter, text string, components []Component, concepts map[string]Concept) string {
	var lines []string

	if chapter != "" {
		lines = append(lines, LabelChapter+" "+chapter)
	}
	lines = append(lines, LabelCode+" "+c.Code)
	if c.Summary != "" {
		lines = append(lines, LabelSummary+" "+c.Summary)
	}
	if c.Unit != "" {
		lines = append(lines, LabelUnit+" "+c.Unit)
	}
	if c.Price > 0 {
		lines = append(lines, fmt.Sprintf("%s %.2f EUR", LabelPrice, c.Price))
	}
	if text != "" {
		lines = append(lines, LabelDescription+" "+text)
	}

	if len(components) > 0 {
		lines = append(lines, LabelDecomposition)
		for _, comp := range components {
			line := "  - " + comp.Code
			if child, ok := concepts[comp.Code]; ok && child.Summary != "" {
				line += " | " + child.Summary
			}
			if comp.Quantity > 0 {
				line += " | " + LabelQuantity + " " + formatQuantity(comp.Quantity)
			}
			if child, ok := concepts[comp.Code]; ok && child.Price > 0 {
				line += fmt.Sprintf(" | %s %.2f EUR", LabelPrice, child.Price)
			}
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}

// Budget is a fully parsed BC3 file.
type Budget struct {
	Records        []Record
	Concepts       map[string]Concept
	Decompositions map[string][]Component
	Texts          map[string]string
	Hierarchy      map[string][]string
}

// ParseDocument decodes raw BC3 bytes and extracts every structure.
func ParseDocument(raw []byte) (*Budget, error) {
	text, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	records := Parse(text)
	return &Budget{
		Records:        records,
		Concepts:       ExtractConcepts(records),
		Decompositions: ExtractDecompositions(records),
		Texts:          ExtractTexts(records),
		Hierarchy:      ExtractHierarchy(records),
	}, nil
}

// Chunks renders the budget's concepts.
func (b *Budget) Chunks(opts ...ChunkOption) []Chunk {
	return BuildChunks(b.Concepts, b.Decompositions, b.Texts, b.Hierarchy, opts...)
}

// formatQuantity writes the shortest decimal form of q, keeping one
// decimal place for whole numbers: 1 renders as "1.0", 0.25 as "0.25".
func formatQuantity(q float64) string {
	s := strconv.FormatFloat(q, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
