package chunker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/custodia-labs/obra/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, p.overlap)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		p := New(WithChunkSize(1000), WithOverlap(100))
		if p.chunkSize != 1000 || p.overlap != 100 {
			t.Errorf("expected 1000/100, got %d/%d", p.chunkSize, p.overlap)
		}
	})

	t.Run("overlap reduced below half the window", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(60))
		if p.overlap != 25 {
			t.Errorf("expected overlap 25, got %d", p.overlap)
		}
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		if p.chunkSize != DefaultChunkSize || p.overlap != DefaultChunkOverlap {
			t.Errorf("expected defaults, got %d/%d", p.chunkSize, p.overlap)
		}
	})
}

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", New().Name())
	}
}

func TestProcessor_Process_ShortChunksPassThrough(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(10))
	doc := &domain.Document{ID: "doc"}
	in := []domain.Chunk{
		{ID: "a", DocumentID: "doc", Content: "Solera de hormigón", Row: domain.IntPtr(2)},
		{ID: "b", DocumentID: "doc", Content: "Tabique"},
	}

	out, err := p.Process(context.Background(), doc, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(out))
	}
	if out[0].ID != "a" || out[1].ID != "b" || out[1].Position != 1 {
		t.Errorf("unexpected chunks: %+v", out)
	}
	if *out[0].Row != 2 {
		t.Errorf("expected row provenance kept")
	}
}

func TestProcessor_Process_CutsOnNewline(t *testing.T) {
	p := New(WithChunkSize(20), WithOverlap(2))
	doc := &domain.Document{ID: "doc"}
	// Newline at index 13, inside the second half of the first window.
	content := "primera linea\nsegunda linea larga\ntercera"

	out, err := p.Process(context.Background(), doc, []domain.Chunk{{Content: content, Page: domain.IntPtr(7)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) < 2 {
		t.Fatalf("expected split, got %d chunks", len(out))
	}
	if out[0].Content != "primera linea" {
		t.Errorf("expected cut at newline, got %q", out[0].Content)
	}
	for i, c := range out {
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
		if c.Page == nil || *c.Page != 7 {
			t.Errorf("chunk %d lost page provenance", i)
		}
		if c.DocumentID != "doc" || c.ID == "" {
			t.Errorf("chunk %d missing ids", i)
		}
		if utf8.RuneCountInString(c.Content) > 20 {
			t.Errorf("chunk %d too long: %q", i, c.Content)
		}
	}
}

func TestProcessor_Process_Overlap(t *testing.T) {
	p := New(WithChunkSize(10), WithOverlap(2))
	doc := &domain.Document{ID: "doc"}
	content := "abcdefghijklmnopqrstuvwxyz"

	out, err := p.Process(context.Background(), doc, []domain.Chunk{{Content: content}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"abcdefghij", "ijklmnopqr", "qrstuvwxyz"}
	if len(out) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(out))
	}
	for i := range want {
		if out[i].Content != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], out[i].Content)
		}
	}
}

func TestProcessor_Process_CountsRunes(t *testing.T) {
	p := New(WithChunkSize(10), WithOverlap(0))
	doc := &domain.Document{ID: "doc"}
	content := strings.Repeat("ñ", 25)

	out, err := p.Process(context.Background(), doc, []domain.Chunk{{Content: content}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(out))
	}
	for _, c := range out {
		if !utf8.ValidString(c.Content) {
			t.Errorf("invalid UTF-8 in %q", c.Content)
		}
	}
}

func TestProcessor_Process_DropsBlankFragments(t *testing.T) {
	p := New(WithChunkSize(10), WithOverlap(0))
	doc := &domain.Document{ID: "doc"}
	content := "abcdefghij" + strings.Repeat(" ", 10) + "klm"

	out, err := p.Process(context.Background(), doc, []domain.Chunk{{Content: content}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(out))
	}
	if out[1].Content != "klm" {
		t.Errorf("expected 'klm', got %q", out[1].Content)
	}
}

func TestProcessor_Process_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Process(ctx, &domain.Document{ID: "doc"}, []domain.Chunk{{Content: "x"}})
	if err == nil {
		t.Error("expected context error")
	}
}
