package mcp

import (
	"context"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results    []domain.RankedChunk
	err        error
	lastReq    domain.SearchRequest
	lastDocID  string
	withinDocs int
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) ([]domain.RankedChunk, error) {
	m.lastReq = req
	return m.results, m.err
}

func (m *mockSearchService) SearchWithinDocument(
	_ context.Context,
	documentID, query string,
	maxResults int,
) ([]domain.RankedChunk, error) {
	m.withinDocs++
	m.lastDocID = documentID
	m.lastReq = domain.SearchRequest{Query: query, MaxResults: maxResults}
	return m.results, m.err
}

// mockRAGService is a mock implementation of driving.RAGService.
type mockRAGService struct {
	response *domain.QueryResponse
	err      error
	lastReq  domain.QueryRequest
}

func (m *mockRAGService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	m.lastReq = req
	return m.response, m.err
}

func (m *mockRAGService) ClearSession(_ string) bool {
	return true
}

// mockBudgetService is a mock implementation of driving.BudgetService.
type mockBudgetService struct {
	result  *domain.BC3Result
	err     error
	lastReq domain.BC3Request
}

func (m *mockBudgetService) GenerateBC3(_ context.Context, req domain.BC3Request) (*domain.BC3Result, error) {
	m.lastReq = req
	return m.result, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	content   string
	err       error
}

func (m *mockDocumentService) Ingest(_ context.Context, _ driving.IngestRequest) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) IngestBatch(_ context.Context, reqs []driving.IngestRequest) []driving.IngestResult {
	out := make([]driving.IngestResult, len(reqs))
	for i, r := range reqs {
		out[i] = driving.IngestResult{Path: r.Path, Document: m.document, Err: m.err}
	}
	return out
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) GetContent(_ context.Context, _ string) (string, error) {
	return m.content, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}
