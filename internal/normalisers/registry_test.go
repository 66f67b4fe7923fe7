package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

type stubNormaliser struct {
	name     string
	types    []string
	priority int
}

func (s *stubNormaliser) SupportedMIMETypes() []string { return s.types }
func (s *stubNormaliser) Priority() int                { return s.priority }

func (s *stubNormaliser) Normalise(_ context.Context, _ *domain.RawDocument) (*driven.NormaliseResult, error) {
	return &driven.NormaliseResult{Sections: []domain.Section{{Content: s.name}}}, nil
}

func TestRegistry_PicksHighestPriority(t *testing.T) {
	r := NewRegistry(
		&stubNormaliser{name: "fallback", types: []string{"text/plain", "text/csv"}, priority: 5},
		&stubNormaliser{name: "csv", types: []string{"text/csv"}, priority: 60},
	)

	result, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, "csv", result.Sections[0].Content)

	result, err = r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Sections[0].Content)
}

func TestRegistry_EqualPriorityKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{name: "first", types: []string{"text/plain"}, priority: 50})
	r.Register(&stubNormaliser{name: "second", types: []string{"text/plain"}, priority: 50})

	result, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "first", result.Sections[0].Content)
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewRegistry(&stubNormaliser{types: []string{"text/plain"}})

	_, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "image/png"})
	require.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = r.Normalise(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_SupportedMIMETypes(t *testing.T) {
	r := NewRegistry(
		&stubNormaliser{types: []string{"text/plain", "text/csv"}},
		&stubNormaliser{types: []string{"text/csv", "application/pdf"}},
	)

	assert.Equal(t, []string{"application/pdf", "text/csv", "text/plain"}, r.SupportedMIMETypes())
}
