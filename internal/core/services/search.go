package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
	"github.com/custodia-labs/obra/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// RRFConstant damps the contribution of top ranks in Reciprocal Rank Fusion.
const RRFConstant = 60

// candidateFactor is how many candidates each source returns per requested result.
const candidateFactor = 2

// SearchService provides hybrid search over the content store.
type SearchService struct {
	content          driven.ContentStore
	embeddingService driven.EmbeddingService
}

// NewSearchService creates a new search service.
func NewSearchService(content driven.ContentStore, embeddingService driven.EmbeddingService) *SearchService {
	return &SearchService{
		content:          content,
		embeddingService: embeddingService,
	}
}

// Search fuses vector and lexical retrieval with Reciprocal Rank Fusion.
//
// Both sub-queries run on the same read snapshot. A lexical failure is
// logged and treated as no lexical results; a vector failure is returned.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RankedChunk, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", req.Query)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.RankedChunk{}, nil
	}
	if req.MaxResults <= 0 {
		return nil, domain.NewValidationError("max_results", "must be positive")
	}
	if s.content == nil {
		return nil, errors.New("content store unavailable")
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	candidates := req.MaxResults * candidateFactor
	logger.Debug("Limit: %d, candidates per source: %d", req.MaxResults, candidates)

	embedding, err := s.embeddingService.Embed(ctx, query)
	if err != nil {
		logger.Warn("Query embedding failed: %v", err)
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	reader, err := s.content.BeginRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			logger.Warn("Close read snapshot: %v", cerr)
		}
	}()

	vectorResults, err := reader.VectorSearch(ctx, embedding, candidates, req.Filters)
	if err != nil {
		logger.Warn("Vector search failed: %v", err)
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(vectorResults))

	lexicalResults, err := reader.LexicalSearch(ctx, query, candidates, req.Filters)
	if err != nil {
		logger.Warn("Lexical search failed, using vector results only: %v", err)
		lexicalResults = nil
	}
	logger.Debug("Lexical search: %d hits", len(lexicalResults))

	var results []domain.RankedChunk
	if len(lexicalResults) == 0 {
		logger.Debug("No lexical results, skipping fusion")
		results = truncate(vectorResults, req.MaxResults)
	} else {
		results = truncate(FuseRRF(vectorResults, lexicalResults, RRFConstant), req.MaxResults)
	}

	if req.MinScore > 0 {
		results = filterByScore(results, req.MinScore)
		logger.Debug("After min score %.2f: %d results", req.MinScore, len(results))
	}

	logger.Info("Final results: %d", len(results))
	return results, nil
}

// SearchWithinDocument runs vector-only retrieval scoped to one document.
func (s *SearchService) SearchWithinDocument(
	ctx context.Context, documentID, query string, maxResults int,
) ([]domain.RankedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.RankedChunk{}, nil
	}
	if documentID == "" {
		return nil, domain.NewValidationError("document_id", "required")
	}
	if maxResults <= 0 {
		return nil, domain.NewValidationError("max_results", "must be positive")
	}
	if s.content == nil {
		return nil, errors.New("content store unavailable")
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	embedding, err := s.embeddingService.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}

	reader, err := s.content.BeginRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer reader.Close() //nolint:errcheck // read-only snapshot

	results, err := reader.VectorSearchInDocument(ctx, documentID, embedding, maxResults)
	if err != nil {
		return nil, fmt.Errorf("vector search in document %s: %w", documentID, err)
	}
	logger.Debug("Document %s: %d hits", documentID, len(results))
	return results, nil
}

// FuseRRF merges two rankings with Reciprocal Rank Fusion using 1-based ranks.
//
// Each chunk scores 1/(k+rank) per list it appears in. Scores are divided by
// the maximum 2/(k+1), so rank 1 in both lists scores 1.0 and rank 1 in one
// list only scores 0.5. Ties keep first-seen order: vector list, then lexical.
func FuseRRF(vector, lexical []domain.RankedChunk, k int) []domain.RankedChunk {
	maxScore := 2.0 / float64(k+1)
	index := make(map[string]int, len(vector)+len(lexical))
	fused := make([]domain.RankedChunk, 0, len(vector)+len(lexical))

	add := func(list []domain.RankedChunk) {
		for rank, chunk := range list {
			rrf := 1.0 / float64(k+rank+1)
			if i, ok := index[chunk.ChunkID]; ok {
				fused[i].Score += rrf
				continue
			}
			index[chunk.ChunkID] = len(fused)
			chunk.Score = rrf
			fused = append(fused, chunk)
		}
	}
	add(vector)
	add(lexical)

	for i := range fused {
		fused[i].Score /= maxScore
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}

func truncate(results []domain.RankedChunk, n int) []domain.RankedChunk {
	if len(results) > n {
		return results[:n]
	}
	return results
}

func filterByScore(results []domain.RankedChunk, minScore float64) []domain.RankedChunk {
	filtered := make([]domain.RankedChunk, 0, len(results))
	for i := range results {
		if results[i].Score >= minScore {
			filtered = append(filtered, results[i])
		}
	}
	return filtered
}
