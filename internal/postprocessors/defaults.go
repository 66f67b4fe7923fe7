package postprocessors

import (
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/postprocessors/chunker"
	"github.com/custodia-labs/obra/internal/postprocessors/limit"
)

// Stage names.
const (
	StageChunker = "chunker"
	StageLimit   = "limit"
)

// DefaultStages is the ingestion order: split, then cap.
var DefaultStages = []string{StageChunker, StageLimit}

// RegisterDefaults registers the built-in stages.
func RegisterDefaults(r *Registry) {
	r.Register(StageChunker, buildChunker)
	r.Register(StageLimit, buildLimit)
}

// DefaultPipeline builds the ingestion pipeline from settings.
func DefaultPipeline(settings domain.IngestSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.Build(DefaultStages, settings)
}

// buildChunker uses the chunker defaults for unset sizes. A zero overlap is
// honoured only when a chunk size is configured.
func buildChunker(settings domain.IngestSettings) (driven.PostProcessor, error) {
	var opts []chunker.Option
	if settings.ChunkSize > 0 {
		opts = append(opts,
			chunker.WithChunkSize(settings.ChunkSize),
			chunker.WithOverlap(settings.ChunkOverlap),
		)
	}
	return chunker.New(opts...), nil
}

func buildLimit(settings domain.IngestSettings) (driven.PostProcessor, error) {
	return limit.New(settings.MaxChunks), nil
}
