package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/obra/internal/core/domain"
)

func newTestRAG(store *mockContentStore, llm *mockLLMService, sessions *mockSessionStore) *RAGService {
	search := NewSearchService(store, &mockEmbeddingService{})
	if sessions == nil {
		return NewRAGService(search, llm, nil, time.Minute)
	}
	return NewRAGService(search, llm, sessions, time.Minute)
}

func TestRAGService_Query_Grounded(t *testing.T) {
	store := &mockContentStore{
		vector:  chunks("a", "b"),
		lexical: chunks("a"),
	}
	store.vector[0].Page = domain.IntPtr(12)
	llm := &mockLLMService{answer: "El m2 de solera cuesta 24,50 €."}
	service := newTestRAG(store, llm, nil)

	resp, err := service.Query(context.Background(), domain.QueryRequest{Query: "precio solera"})

	require.NoError(t, err)
	assert.Equal(t, "El m2 de solera cuesta 24,50 €.", resp.Answer)
	assert.False(t, resp.Metadata.IsMarketEstimate)
	assert.Equal(t, 1, resp.Metadata.ResultsCount)
	assert.InDelta(t, 1.0, resp.Metadata.MaxScore, 1e-12)
	assert.InDelta(t, domain.DefaultMinScore, resp.Metadata.MinScoreUsed, 1e-12)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "a", resp.Sources[0].ChunkID)
	assert.Equal(t, []string{"[Documento: a.pdf | Página: 12]\ncontenido a"}, llm.lastFragments)
	assert.Equal(t, 1, llm.contextCalls)
	assert.Zero(t, llm.marketCalls)
}

func TestRAGService_Query_MarketEstimate(t *testing.T) {
	store := &mockContentStore{vector: chunks("a")}
	store.vector[0].Score = 0.3
	llm := &mockLLMService{market: "Entre 20 y 30 €/m2."}
	service := newTestRAG(store, llm, nil)

	resp, err := service.Query(context.Background(), domain.QueryRequest{Query: "precio solera"})

	require.NoError(t, err)
	assert.True(t, resp.Metadata.IsMarketEstimate)
	assert.Zero(t, resp.Metadata.ResultsCount)
	assert.Empty(t, resp.Sources)
	assert.True(t, strings.HasPrefix(resp.Answer, "Entre 20 y 30 €/m2."))
	assert.True(t, strings.HasSuffix(resp.Answer, MarketEstimateDisclaimer))
	assert.Contains(t, resp.Answer, "ESTIMACIÓN DE MERCADO")
	assert.Equal(t, 1, llm.marketCalls)
}

func TestRAGService_Query_ZeroMinScoreKeepsEverything(t *testing.T) {
	store := &mockContentStore{vector: chunks("a", "b")}
	store.vector[0].Score = 0.1
	store.vector[1].Score = 0.05
	llm := &mockLLMService{answer: "ok"}
	service := newTestRAG(store, llm, nil)
	zero := 0.0

	resp, err := service.Query(context.Background(), domain.QueryRequest{Query: "q", MinScore: &zero})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Metadata.ResultsCount)
	assert.InDelta(t, 0.1, resp.Metadata.MaxScore, 1e-12)
}

func TestRAGService_Query_Validation(t *testing.T) {
	service := newTestRAG(&mockContentStore{}, &mockLLMService{}, nil)
	tooHigh := 1.5

	tests := []struct {
		name  string
		req   domain.QueryRequest
		field string
	}{
		{"empty", domain.QueryRequest{Query: "  "}, "query"},
		{"too long", domain.QueryRequest{Query: strings.Repeat("á", domain.MaxQueryLength+1)}, "query"},
		{"too many results", domain.QueryRequest{Query: "q", MaxResults: domain.MaxMaxResults + 1}, "max_results"},
		{"negative results", domain.QueryRequest{Query: "q", MaxResults: -1}, "max_results"},
		{"min score", domain.QueryRequest{Query: "q", MinScore: &tooHigh}, "min_score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Query(context.Background(), tt.req)

			require.ErrorIs(t, err, domain.ErrInvalidInput)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestRAGService_Query_MaxLengthAccepted(t *testing.T) {
	store := &mockContentStore{vector: chunks("a")}
	service := newTestRAG(store, &mockLLMService{answer: "ok"}, nil)

	_, err := service.Query(context.Background(), domain.QueryRequest{Query: strings.Repeat("á", domain.MaxQueryLength)})

	assert.NoError(t, err)
}

func TestRAGService_Query_SessionHistory(t *testing.T) {
	store := &mockContentStore{vector: chunks("a"), lexical: chunks("a")}
	history := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "precio solera"},
		{Role: domain.RoleAssistant, Content: "24,50 €/m2"},
	}
	sessions := &mockSessionStore{history: map[string][]domain.ChatMessage{"s1": history}}
	llm := &mockLLMService{answer: "Con mallazo sube a 28 €/m2."}
	service := newTestRAG(store, llm, sessions)

	resp, err := service.Query(context.Background(), domain.QueryRequest{Query: "¿y con mallazo?", SessionID: "s1"})

	require.NoError(t, err)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, history, llm.lastHistory)
	require.Len(t, sessions.exchanges, 1)
	assert.Equal(t, [3]string{"s1", "¿y con mallazo?", "Con mallazo sube a 28 €/m2."}, sessions.exchanges[0])
}

func TestRAGService_Query_MarketEstimateRecordedInSession(t *testing.T) {
	sessions := &mockSessionStore{}
	llm := &mockLLMService{market: "Unos 30 €."}
	service := newTestRAG(&mockContentStore{}, llm, sessions)

	resp, err := service.Query(context.Background(), domain.QueryRequest{Query: "precio", SessionID: "s2"})

	require.NoError(t, err)
	require.Len(t, sessions.exchanges, 1)
	assert.Equal(t, resp.Answer, sessions.exchanges[0][2])
}

func TestRAGService_Query_GenerationErrors(t *testing.T) {
	for _, sentinel := range []error{domain.ErrGenerationSaturated, domain.ErrGenerationFailed} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			sessions := &mockSessionStore{}
			store := &mockContentStore{vector: chunks("a"), lexical: chunks("a")}
			llm := &mockLLMService{err: fmt.Errorf("gemini: %w", sentinel)}
			service := newTestRAG(store, llm, sessions)

			_, err := service.Query(context.Background(), domain.QueryRequest{Query: "q", SessionID: "s"})

			assert.ErrorIs(t, err, sentinel)
			assert.Empty(t, sessions.exchanges)
		})
	}
}

func TestRAGService_Query_NoLLM(t *testing.T) {
	service := NewRAGService(NewSearchService(&mockContentStore{}, &mockEmbeddingService{}), nil, nil, 0)

	_, err := service.Query(context.Background(), domain.QueryRequest{Query: "q"})

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestRAGService_ClearSession(t *testing.T) {
	sessions := &mockSessionStore{history: map[string][]domain.ChatMessage{"s1": nil}}
	service := newTestRAG(&mockContentStore{}, &mockLLMService{}, sessions)

	assert.True(t, service.ClearSession("s1"))
	assert.False(t, service.ClearSession("s1"))
	assert.False(t, NewRAGService(nil, nil, nil, 0).ClearSession("s1"))
}

func TestFormatContextFragment(t *testing.T) {
	tests := []struct {
		name  string
		chunk domain.RankedChunk
		want  string
	}{
		{
			name:  "filename only",
			chunk: domain.RankedChunk{Filename: "precios.txt", Content: "Solera 24,50 €"},
			want:  "[Documento: precios.txt]\nSolera 24,50 €",
		},
		{
			name:  "page",
			chunk: domain.RankedChunk{Filename: "base.pdf", Content: "x", Page: domain.IntPtr(4)},
			want:  "[Documento: base.pdf | Página: 4]\nx",
		},
		{
			name:  "row",
			chunk: domain.RankedChunk{Filename: "tarifa.csv", Content: "y", Row: domain.IntPtr(17)},
			want:  "[Documento: tarifa.csv | Fila: 17]\ny",
		},
		{
			name:  "page and row",
			chunk: domain.RankedChunk{Filename: "f", Content: "z", Page: domain.IntPtr(1), Row: domain.IntPtr(2)},
			want:  "[Documento: f | Página: 1 | Fila: 2]\nz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatContextFragment(tt.chunk))
		})
	}
}
