package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

func TestRegistry_BuildInOrder(t *testing.T) {
	r := NewRegistry()
	var got domain.IngestSettings
	r.Register("b", func(s domain.IngestSettings) (driven.PostProcessor, error) {
		got = s
		return &stubStage{name: "b"}, nil
	})
	r.Register("a", func(domain.IngestSettings) (driven.PostProcessor, error) {
		return &stubStage{name: "a"}, nil
	})

	p, err := r.Build([]string{"b", "a"}, domain.IngestSettings{MaxChunks: 7})

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, p.Names())
	assert.Equal(t, 7, got.MaxChunks)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistry_UnknownStage(t *testing.T) {
	_, err := NewRegistry().Build([]string{"ocr"}, domain.IngestSettings{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown ingestion stage "ocr"`)
}

func TestRegistry_BuilderError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("bad size")
	r.Register("split", func(domain.IngestSettings) (driven.PostProcessor, error) { return nil, boom })

	_, err := r.Build([]string{"split"}, domain.IngestSettings{})

	require.ErrorIs(t, err, boom)
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	assert.Equal(t, []string{StageChunker, StageLimit}, r.Names())
}

func TestDefaultPipeline_SplitsThenCaps(t *testing.T) {
	p, err := DefaultPipeline(domain.IngestSettings{ChunkSize: 10, ChunkOverlap: 0, MaxChunks: 2})
	require.NoError(t, err)
	assert.Equal(t, DefaultStages, p.Names())

	in := []domain.Chunk{{ID: "a", Content: "abcdefghijklmnopqrstuvwxyz"}}
	out, err := p.Process(context.Background(), &domain.Document{ID: "d"}, in)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "abcdefghij", out[0].Content)
}

func TestDefaultPipeline_ZeroSettingsUseDefaults(t *testing.T) {
	p, err := DefaultPipeline(domain.IngestSettings{})
	require.NoError(t, err)

	in := []domain.Chunk{{ID: "a", Content: strings.Repeat("x", 400)}}
	out, err := p.Process(context.Background(), &domain.Document{ID: "d"}, in)

	require.NoError(t, err)
	assert.Len(t, out, 1)
}
