// Package chunker splits long chunks into overlapping windows.
package chunker

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 50

// Processor splits chunks longer than the chunk size. Cuts prefer the last
// newline in the second half of each window. Shorter chunks pass through.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// A cut can land at half the window, so overlap must stay below that.
	if p.overlap >= p.chunkSize/2 {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits each oversized chunk into fragments that inherit its
// provenance, then renumbers positions.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, 0, len(chunks))

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content := []rune(c.Content)
		if len(content) <= p.chunkSize {
			out = append(out, c)
			continue
		}

		for _, fragment := range p.split(content) {
			out = append(out, domain.Chunk{
				ID:         uuid.New().String(),
				DocumentID: doc.ID,
				Content:    fragment,
				Page:       c.Page,
				Row:        c.Row,
				Metadata:   copyMetadata(c.Metadata),
			})
		}
	}

	for i := range out {
		out[i].Position = i
	}
	return out, nil
}

// split cuts content into trimmed, non-empty windows of at most chunkSize runes.
func (p *Processor) split(content []rune) []string {
	var fragments []string
	start := 0

	for start < len(content) {
		end := start + p.chunkSize
		if end < len(content) {
			if nl := lastNewline(content, start+p.chunkSize/2, end); nl >= 0 {
				end = nl + 1
			}
		} else {
			end = len(content)
		}

		if fragment := strings.TrimSpace(string(content[start:end])); fragment != "" {
			fragments = append(fragments, fragment)
		}

		if end == len(content) {
			break
		}
		start = end - p.overlap
	}

	return fragments
}

// lastNewline returns the index of the last '\n' in content[from:to], or -1.
func lastNewline(content []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if content[i] == '\n' {
			return i
		}
	}
	return -1
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
