package mcp

import (
	"context"
	"encoding/base64"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/obra/internal/bc3"
	"github.com/custodia-labs/obra/internal/core/domain"
)

// defaultSearchLimit applies when the search tool gets no limit.
const defaultSearchLimit = 10

// FilterInput restricts retrieval to documents with matching metadata.
type FilterInput struct {
	DocumentType   string `json:"document_type,omitempty" jsonschema:"document type, e.g. tarifa, presupuesto or bc3"`
	Category       string `json:"category,omitempty" jsonschema:"trade category"`
	GeographicZone string `json:"geographic_zone,omitempty" jsonschema:"region the prices apply to"`
	PriceYear      *int   `json:"price_year,omitempty" jsonschema:"year the prices refer to"`
}

func (f *FilterInput) toDomain() domain.SearchFilters {
	if f == nil {
		return domain.SearchFilters{}
	}
	return domain.SearchFilters{
		DocumentType:   f.DocumentType,
		Category:       f.Category,
		GeographicZone: f.GeographicZone,
		PriceYear:      f.PriceYear,
	}
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string       `json:"query" jsonschema:"the search query to find price fragments"`
	Limit      int          `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	MinScore   float64      `json:"min_score,omitempty" jsonschema:"drop results below this normalised score (0-1)"`
	Filters    *FilterInput `json:"filters,omitempty" jsonschema:"metadata filters"`
	DocumentID string       `json:"document_id,omitempty" jsonschema:"restrict the search to one document (semantic only)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single retrieved fragment.
type SearchResultOutput struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Filename   string  `json:"filename"`
	Page       *int    `json:"page,omitempty"`
	Row        *int    `json:"row,omitempty"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Query      string       `json:"query" jsonschema:"the cost question"`
	MaxResults int          `json:"max_results,omitempty" jsonschema:"fragments used as evidence, 1-20 (default 5)"`
	MinScore   *float64     `json:"min_score,omitempty" jsonschema:"relevance threshold, 0-1 (default 0.5)"`
	SessionID  string       `json:"session_id,omitempty" jsonschema:"conversation id to keep history between calls"`
	Filters    *FilterInput `json:"filters,omitempty" jsonschema:"metadata filters"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Answer           string               `json:"answer"`
	Sources          []SearchResultOutput `json:"sources"`
	SessionID        string               `json:"session_id,omitempty"`
	ResultsCount     int                  `json:"results_count"`
	MaxScore         float64              `json:"max_score"`
	IsMarketEstimate bool                 `json:"is_market_estimate"`
	MinScoreUsed     float64              `json:"min_score_used"`
}

// GenerateBC3Input is the input schema for the generate_bc3 tool.
type GenerateBC3Input struct {
	Queries            []string     `json:"queries" jsonschema:"item descriptions to search for, 1-50"`
	MaxResultsPerQuery int          `json:"max_results_per_query,omitempty" jsonschema:"items taken per query, 1-10 (default 3)"`
	ProjectName        string       `json:"project_name,omitempty" jsonschema:"name of the budget root concept"`
	EnrichPrices       bool         `json:"enrich_prices,omitempty" jsonschema:"estimate missing prices with the language model"`
	Filters            *FilterInput `json:"filters,omitempty" jsonschema:"metadata filters"`
}

// GenerateBC3Output is the output schema for the generate_bc3 tool.
type GenerateBC3Output struct {
	Filename         string           `json:"filename"`
	Content          string           `json:"content"`
	ContentBase64    string           `json:"content_base64"`
	Items            []LineItemOutput `json:"items"`
	ItemsCount       int              `json:"items_count"`
	QueriesProcessed int              `json:"queries_processed"`
	EstimatedPrices  int              `json:"estimated_prices"`
}

// LineItemOutput is one budget line.
type LineItemOutput struct {
	Code           string  `json:"code"`
	Summary        string  `json:"summary"`
	Unit           string  `json:"unit"`
	Price          float64 `json:"price"`
	PriceEstimated bool    `json:"price_estimated,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid (semantic and keyword) search across indexed price documents",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "query",
		Description: "Answer a construction cost question from indexed documents. " +
			"Falls back to a labelled market estimate when no document is relevant",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "generate_bc3",
		Description: "Generate a FIEBDC-3 (BC3) budget from items found for each query. " +
			"content holds the file as text, content_base64 the exact Latin-1 bytes",
	}, s.handleGenerateBC3)
}

func toResultOutputs(chunks []domain.RankedChunk) []SearchResultOutput {
	out := make([]SearchResultOutput, len(chunks))
	for i, c := range chunks {
		out[i] = SearchResultOutput{
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			Filename:   c.Filename,
			Page:       c.Page,
			Row:        c.Row,
			Score:      c.Score,
			Content:    c.Content,
		}
	}
	return out
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var (
		results []domain.RankedChunk
		err     error
	)
	if input.DocumentID != "" {
		results, err = s.ports.Search.SearchWithinDocument(ctx, input.DocumentID, input.Query, limit)
	} else {
		results, err = s.ports.Search.Search(ctx, domain.SearchRequest{
			Query:      input.Query,
			MaxResults: limit,
			Filters:    input.Filters.toDomain(),
			MinScore:   input.MinScore,
		})
	}
	if err != nil {
		return nil, SearchOutput{}, toolError("search", err)
	}

	return nil, SearchOutput{
		Results: toResultOutputs(results),
		Count:   len(results),
	}, nil
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	if s.ports.RAG == nil {
		return nil, QueryOutput{}, errServiceUnavailable
	}

	resp, err := s.ports.RAG.Query(ctx, domain.QueryRequest{
		Query:      input.Query,
		MaxResults: input.MaxResults,
		Filters:    input.Filters.toDomain(),
		MinScore:   input.MinScore,
		SessionID:  input.SessionID,
	})
	if err != nil {
		return nil, QueryOutput{}, toolError("query", err)
	}

	return nil, QueryOutput{
		Answer:           resp.Answer,
		Sources:          toResultOutputs(resp.Sources),
		SessionID:        resp.SessionID,
		ResultsCount:     resp.Metadata.ResultsCount,
		MaxScore:         resp.Metadata.MaxScore,
		IsMarketEstimate: resp.Metadata.IsMarketEstimate,
		MinScoreUsed:     resp.Metadata.MinScoreUsed,
	}, nil
}

// handleGenerateBC3 handles the generate_bc3 tool invocation.
func (s *Server) handleGenerateBC3(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateBC3Input,
) (*mcp.CallToolResult, GenerateBC3Output, error) {
	if s.ports.Budget == nil {
		return nil, GenerateBC3Output{}, errServiceUnavailable
	}

	result, err := s.ports.Budget.GenerateBC3(ctx, domain.BC3Request{
		Queries:            input.Queries,
		MaxResultsPerQuery: input.MaxResultsPerQuery,
		ProjectName:        input.ProjectName,
		Filters:            input.Filters.toDomain(),
		EnrichPrices:       input.EnrichPrices,
	})
	if err != nil {
		return nil, GenerateBC3Output{}, toolError("generate_bc3", err)
	}

	text, err := bc3.Decode(result.Content)
	if err != nil {
		return nil, GenerateBC3Output{}, toolError("generate_bc3", err)
	}

	items := make([]LineItemOutput, len(result.Items))
	for i, item := range result.Items {
		items[i] = LineItemOutput{
			Code:           item.Code,
			Summary:        item.Summary,
			Unit:           item.Unit,
			Price:          item.Price,
			PriceEstimated: item.PriceEstimated,
		}
	}

	return nil, GenerateBC3Output{
		Filename:         result.Filename,
		Content:          text,
		ContentBase64:    base64.StdEncoding.EncodeToString(result.Content),
		Items:            items,
		ItemsCount:       len(items),
		QueriesProcessed: result.QueriesProcessed,
		EstimatedPrices:  result.EstimatedPrices,
	}, nil
}
