package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
	"github.com/custodia-labs/obra/internal/logger"
)

// Ensure RAGService implements the interface.
var _ driving.RAGService = (*RAGService)(nil)

// MarketEstimateDisclaimer is appended to answers not backed by indexed evidence.
const MarketEstimateDisclaimer = "\n\n---\n" +
	"> ⚠️ **ESTIMACIÓN DE MERCADO**: Este precio NO proviene de tu base de " +
	"conocimiento propia. Es una estimación basada en el conocimiento general " +
	"del mercado español. Verifica antes de usar en presupuesto definitivo."

// RAGService answers questions from retrieved evidence.
type RAGService struct {
	search   driving.SearchService
	llm      driven.LLMService
	sessions driven.SessionStore
	timeout  time.Duration
}

// NewRAGService creates a RAG service.
// The sessions parameter is optional (can be nil); timeout zero disables the deadline.
func NewRAGService(
	search driving.SearchService,
	llm driven.LLMService,
	sessions driven.SessionStore,
	timeout time.Duration,
) *RAGService {
	return &RAGService{
		search:   search,
		llm:      llm,
		sessions: sessions,
		timeout:  timeout,
	}
}

// Query retrieves evidence and asks the model for a grounded answer.
// When nothing clears the relevance gate the model gives a market estimate
// instead, labelled with MarketEstimateDisclaimer.
func (s *RAGService) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	logger.Section("RAG Query")

	query, maxResults, minScore, err := validateQuery(req)
	if err != nil {
		return nil, err
	}
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	results, err := s.search.Search(ctx, domain.SearchRequest{
		Query:      query,
		MaxResults: maxResults,
		Filters:    req.Filters,
		MinScore:   minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve evidence: %w", err)
	}

	var history []domain.ChatMessage
	if req.SessionID != "" && s.sessions != nil {
		history = s.sessions.History(req.SessionID)
		logger.Debug("Session %s: %d history messages", req.SessionID, len(history))
	}

	resp := &domain.QueryResponse{
		SessionID: req.SessionID,
		Sources:   []domain.RankedChunk{},
		Metadata:  domain.QueryMetadata{MinScoreUsed: minScore},
	}

	if len(results) == 0 {
		logger.Info("No results with score >= %.2f for %q, generating market estimate", minScore, query)
		estimate, err := s.llm.GenerateMarketPriceEstimate(ctx, query, history)
		if err != nil {
			return nil, fmt.Errorf("market estimate: %w", err)
		}
		resp.Answer = estimate + MarketEstimateDisclaimer
		resp.Metadata.IsMarketEstimate = true
	} else {
		fragments := make([]string, len(results))
		for i := range results {
			fragments[i] = FormatContextFragment(results[i])
			if results[i].Score > resp.Metadata.MaxScore {
				resp.Metadata.MaxScore = results[i].Score
			}
		}
		answer, err := s.llm.GenerateWithContext(ctx, query, fragments, history)
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		resp.Answer = answer
		resp.Sources = results
		resp.Metadata.ResultsCount = len(results)
	}

	if req.SessionID != "" && s.sessions != nil {
		s.sessions.AddExchange(req.SessionID, query, resp.Answer)
	}

	logger.Info("RAG query %q: %d sources, market estimate=%t",
		query, len(resp.Sources), resp.Metadata.IsMarketEstimate)
	return resp, nil
}

// ClearSession forgets a conversation.
func (s *RAGService) ClearSession(sessionID string) bool {
	if s.sessions == nil {
		return false
	}
	return s.sessions.Clear(sessionID)
}

// FormatContextFragment renders a chunk with its provenance for the prompt.
func FormatContextFragment(c domain.RankedChunk) string {
	var b strings.Builder
	b.WriteString("[Documento: ")
	b.WriteString(c.Filename)
	if c.Page != nil && *c.Page != 0 {
		b.WriteString(" | Página: ")
		b.WriteString(strconv.Itoa(*c.Page))
	}
	if c.Row != nil && *c.Row != 0 {
		b.WriteString(" | Fila: ")
		b.WriteString(strconv.Itoa(*c.Row))
	}
	b.WriteString("]\n")
	b.WriteString(c.Content)
	return b.String()
}

func validateQuery(req domain.QueryRequest) (query string, maxResults int, minScore float64, err error) {
	query = strings.TrimSpace(req.Query)
	if query == "" {
		return "", 0, 0, domain.NewValidationError("query", "must not be empty")
	}
	if utf8.RuneCountInString(query) > domain.MaxQueryLength {
		return "", 0, 0, domain.NewValidationError("query",
			fmt.Sprintf("must be at most %d characters", domain.MaxQueryLength))
	}

	maxResults = req.MaxResults
	if maxResults == 0 {
		maxResults = domain.DefaultMaxResults
	}
	if maxResults < 1 || maxResults > domain.MaxMaxResults {
		return "", 0, 0, domain.NewValidationError("max_results",
			fmt.Sprintf("must be between 1 and %d", domain.MaxMaxResults))
	}

	minScore = domain.DefaultMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	if minScore < 0 || minScore > 1 {
		return "", 0, 0, domain.NewValidationError("min_score", "must be between 0 and 1")
	}
	return query, maxResults, minScore, nil
}
