package postprocessors

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

// Builder creates one ingestion stage from the ingest settings.
type Builder func(settings domain.IngestSettings) (driven.PostProcessor, error)

// Registry maps stage names to builders.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder. The name should match the stage's Name().
func (r *Registry) Register(name string, b Builder) {
	r.builders[name] = b
}

// Build assembles a pipeline running the named stages in order.
func (r *Registry) Build(names []string, settings domain.IngestSettings) (*Pipeline, error) {
	p := NewPipeline()
	for _, name := range names {
		b, ok := r.builders[name]
		if !ok {
			return nil, fmt.Errorf("unknown ingestion stage %q", name)
		}
		stage, err := b(settings)
		if err != nil {
			return nil, fmt.Errorf("build stage %s: %w", name, err)
		}
		p.Add(stage)
	}
	return p, nil
}

// Names returns the registered stage names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
