package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/obra/internal/bc3"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
	"github.com/custodia-labs/obra/internal/lineitem"
	"github.com/custodia-labs/obra/internal/logger"
	"github.com/custodia-labs/obra/internal/prompts"
)

// Ensure BudgetService implements the interface.
var _ driving.BudgetService = (*BudgetService)(nil)

// DefaultEnrichConcurrency bounds parallel price estimates.
const DefaultEnrichConcurrency = 4

// priceEstimateTemperature keeps price answers stable.
const priceEstimateTemperature = 0.1

// BudgetService builds BC3 files from retrieved line items.
type BudgetService struct {
	search      driving.SearchService
	llm         driven.LLMService
	promptStore driven.PromptStore
	concurrency int
	timeout     time.Duration
	now         func() time.Time
}

// NewBudgetService creates a budget service.
// The llm parameter is optional (can be nil); without it prices are never enriched.
func NewBudgetService(
	search driving.SearchService,
	llm driven.LLMService,
	concurrency int,
	timeout time.Duration,
) *BudgetService {
	if concurrency <= 0 {
		concurrency = DefaultEnrichConcurrency
	}
	return &BudgetService{
		search:      search,
		llm:         llm,
		concurrency: concurrency,
		timeout:     timeout,
		now:         time.Now,
	}
}

// SetPromptStore sets the prompt store for the price estimate prompt.
func (s *BudgetService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// GenerateBC3 searches every query, turns each new chunk into a line item and
// serialises the items as a Latin-1 BC3 file. Chunks that yield no item are
// skipped. With no items at all the file still validates, holding an empty
// placeholder chapter.
func (s *BudgetService) GenerateBC3(ctx context.Context, req domain.BC3Request) (*domain.BC3Result, error) {
	logger.Section("BC3 Generation")

	queries, perQuery, projectName, err := validateBC3Request(req)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	seen := make(map[string]bool)
	codes := make(map[string]bool)
	var items []domain.LineItem

	for _, query := range queries {
		results, err := s.search.Search(ctx, domain.SearchRequest{
			Query:      query,
			MaxResults: perQuery,
			Filters:    req.Filters,
		})
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		logger.Debug("Query %q: %d results", query, len(results))

		for i := range results {
			if seen[results[i].ChunkID] {
				continue
			}
			seen[results[i].ChunkID] = true

			item, ok := lineitem.Extract(results[i].Content, results[i].Score)
			if !ok {
				logger.Debug("Chunk %s: no line item", results[i].ChunkID)
				continue
			}
			item.ChunkID = results[i].ChunkID
			item.Code = uniqueCode(bc3.SanitizeCode(item.Code), codes)
			items = append(items, *item)
		}
	}

	if len(items) == 0 {
		logger.Warn("No line items found for %d queries", len(queries))
	}

	estimated := 0
	if req.EnrichPrices && len(items) > 0 {
		estimated, err = s.enrichPrices(ctx, items)
		if err != nil {
			return nil, err
		}
	}

	content, err := bc3.Encode(bc3.BuildAt(items, projectName, s.now()))
	if err != nil {
		return nil, fmt.Errorf("encode bc3: %w", err)
	}

	logger.Info("BC3 generated: %d items, %d estimated prices, %d bytes", len(items), estimated, len(content))

	return &domain.BC3Result{
		Content:          content,
		Filename:         BC3Filename(projectName),
		Items:            items,
		QueriesProcessed: len(queries),
		EstimatedPrices:  estimated,
	}, nil
}

// enrichPrices asks the model for a unit price of every unpriced item.
// Each goroutine writes only its own item. A failed estimate leaves the
// price unknown; only cancellation of ctx fails the whole call.
func (s *BudgetService) enrichPrices(ctx context.Context, items []domain.LineItem) (int, error) {
	if s.llm == nil {
		logger.Warn("Price enrichment requested but no LLM is configured")
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	temperature := priceEstimateTemperature

	for i := range items {
		if items[i].HasPrice() {
			continue
		}
		item := &items[i]
		g.Go(func() error {
			reply, err := s.llm.Generate(gctx, prompts.PriceEstimatePrompt(s.promptStore, *item), driven.GenerateOptions{
				Temperature: &temperature,
				MaxTokens:   32,
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("Price estimate for %s failed: %v", item.Code, err)
				return nil
			}
			price := lineitem.ParsePrice(reply)
			if price <= 0 {
				logger.Debug("Price estimate for %s unusable: %q", item.Code, reply)
				return nil
			}
			item.Price = price
			item.PriceEstimated = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("enrich prices: %w", err)
	}

	estimated := 0
	for i := range items {
		if items[i].PriceEstimated {
			estimated++
		}
	}
	return estimated, nil
}

// uniqueCode returns code, or code with the lowest free "_N" suffix (N >= 2),
// kept within bc3.MaxCodeLength, and records it as taken.
func uniqueCode(code string, taken map[string]bool) string {
	candidate := code
	for n := 2; taken[candidate]; n++ {
		suffix := "_" + strconv.Itoa(n)
		base := code
		if len(base)+len(suffix) > bc3.MaxCodeLength {
			base = base[:bc3.MaxCodeLength-len(suffix)]
		}
		candidate = base + suffix
	}
	taken[candidate] = true
	return candidate
}

// BC3Filename derives a file name from the project name.
func BC3Filename(projectName string) string {
	name := bc3.SanitizeCode(strings.ReplaceAll(strings.TrimSpace(projectName), " ", "_"))
	if name == bc3.PlaceholderCode {
		name = "presupuesto"
	}
	return strings.ToLower(name) + ".bc3"
}

func validateBC3Request(req domain.BC3Request) (queries []string, perQuery int, projectName string, err error) {
	for _, q := range req.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, 0, "", domain.NewValidationError("queries", "at least one query is required")
	}
	if len(queries) > domain.MaxBC3Queries {
		return nil, 0, "", domain.NewValidationError("queries",
			fmt.Sprintf("at most %d queries are allowed", domain.MaxBC3Queries))
	}

	perQuery = req.MaxResultsPerQuery
	if perQuery == 0 {
		perQuery = domain.DefaultResultsPerQuery
	}
	if perQuery < 1 || perQuery > domain.MaxResultsPerQuery {
		return nil, 0, "", domain.NewValidationError("max_results_per_query",
			fmt.Sprintf("must be between 1 and %d", domain.MaxResultsPerQuery))
	}

	projectName = strings.TrimSpace(req.ProjectName)
	if projectName == "" {
		projectName = domain.DefaultProjectName
	}
	if utf8.RuneCountInString(projectName) > domain.MaxProjectNameLength {
		return nil, 0, "", domain.NewValidationError("project_name",
			fmt.Sprintf("must be at most %d characters", domain.MaxProjectNameLength))
	}
	return queries, perQuery, projectName, nil
}
