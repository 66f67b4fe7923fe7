package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	embedding []float32
	embedErr  error
	batchErr  error
	dims      int

	mu      sync.Mutex
	batches [][]string
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.embedding == nil {
		return []float32{1, 0, 0}, nil
	}
	return m.embedding, nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, texts)
	m.mu.Unlock()
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{float32(i), 1, 0}
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 3
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

// mockContentStore implements driven.ContentStore for testing.
type mockContentStore struct {
	vector     []domain.RankedChunk
	lexical    []domain.RankedChunk
	inDocument []domain.RankedChunk
	vectorErr  error
	lexicalErr error
	beginErr   error

	mu            sync.Mutex
	saved         []domain.Chunk
	embeddings    map[string][]float32
	deletedDocs   []string
	readersOpened int
	readersClosed int
	vectorLimit   int
	lexicalLimit  int
	lastFilters   domain.SearchFilters
	lastLexical   string
}

func (m *mockContentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, chunks...)
	return nil
}

func (m *mockContentStore) SaveEmbeddings(_ context.Context, embeddings map[string][]float32, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.embeddings == nil {
		m.embeddings = make(map[string][]float32)
	}
	for id, v := range embeddings {
		m.embeddings[id] = v
	}
	return nil
}

func (m *mockContentStore) DeleteDocumentChunks(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedDocs = append(m.deletedDocs, documentID)
	return nil
}

func (m *mockContentStore) BeginRead(_ context.Context) (driven.ContentReader, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.mu.Lock()
	m.readersOpened++
	m.mu.Unlock()
	return &mockContentReader{store: m}, nil
}

type mockContentReader struct {
	store *mockContentStore
}

func (r *mockContentReader) VectorSearch(
	_ context.Context, _ []float32, limit int, filters domain.SearchFilters,
) ([]domain.RankedChunk, error) {
	r.store.mu.Lock()
	r.store.vectorLimit = limit
	r.store.lastFilters = filters
	r.store.mu.Unlock()
	if r.store.vectorErr != nil {
		return nil, r.store.vectorErr
	}
	return head(r.store.vector, limit), nil
}

func (r *mockContentReader) LexicalSearch(
	_ context.Context, query string, limit int, _ domain.SearchFilters,
) ([]domain.RankedChunk, error) {
	r.store.mu.Lock()
	r.store.lexicalLimit = limit
	r.store.lastLexical = query
	r.store.mu.Unlock()
	if r.store.lexicalErr != nil {
		return nil, r.store.lexicalErr
	}
	return head(r.store.lexical, limit), nil
}

func (r *mockContentReader) VectorSearchInDocument(
	_ context.Context, _ string, _ []float32, limit int,
) ([]domain.RankedChunk, error) {
	if r.store.vectorErr != nil {
		return nil, r.store.vectorErr
	}
	return head(r.store.inDocument, limit), nil
}

func (r *mockContentReader) Close() error {
	r.store.mu.Lock()
	r.store.readersClosed++
	r.store.mu.Unlock()
	return nil
}

func head(chunks []domain.RankedChunk, n int) []domain.RankedChunk {
	if n < len(chunks) {
		chunks = chunks[:n]
	}
	out := make([]domain.RankedChunk, len(chunks))
	copy(out, chunks)
	return out
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	answer      string
	market      string
	generated   string
	err         error
	generateErr error
	// generateFn overrides Generate when set.
	generateFn func(prompt string) (string, error)

	mu            sync.Mutex
	contextCalls  int
	marketCalls   int
	generateCalls int
	lastFragments []string
	lastHistory   []domain.ChatMessage
	lastQuery     string
}

func (m *mockLLMService) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.generateCalls++
	m.mu.Unlock()
	if m.generateFn != nil {
		return m.generateFn(prompt)
	}
	if m.generateErr != nil {
		return "", m.generateErr
	}
	return m.generated, nil
}

func (m *mockLLMService) GenerateWithContext(
	_ context.Context, query string, fragments []string, history []domain.ChatMessage,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contextCalls++
	m.lastQuery = query
	m.lastFragments = fragments
	m.lastHistory = history
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockLLMService) GenerateMarketPriceEstimate(
	_ context.Context, query string, history []domain.ChatMessage,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketCalls++
	m.lastQuery = query
	m.lastHistory = history
	if m.err != nil {
		return "", m.err
	}
	return m.market, nil
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return nil
}

func (m *mockLLMService) Close() error {
	return nil
}

// mockSessionStore implements driven.SessionStore for testing.
type mockSessionStore struct {
	history   map[string][]domain.ChatMessage
	exchanges [][3]string
}

func (m *mockSessionStore) History(sessionID string) []domain.ChatMessage {
	return m.history[sessionID]
}

func (m *mockSessionStore) AddExchange(sessionID, userMessage, assistantMessage string) {
	m.exchanges = append(m.exchanges, [3]string{sessionID, userMessage, assistantMessage})
}

func (m *mockSessionStore) Clear(sessionID string) bool {
	_, ok := m.history[sessionID]
	delete(m.history, sessionID)
	return ok
}

func (m *mockSessionStore) Stats() domain.SessionStats {
	return domain.SessionStats{TotalSessions: len(m.history)}
}

// mockDocumentStore implements driven.DocumentStore for testing.
type mockDocumentStore struct {
	mu      sync.Mutex
	docs    map[string]*domain.Document
	chunks  map[string][]domain.Chunk
	saveErr error
}

func newMockDocumentStore() *mockDocumentStore {
	return &mockDocumentStore{
		docs:   make(map[string]*domain.Document),
		chunks: make(map[string][]domain.Chunk),
	}
}

func (m *mockDocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *mockDocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *mockDocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks[documentID], nil
}

func (m *mockDocumentStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return nil
}

func (m *mockDocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, *d)
	}
	return out, nil
}

func chunk(id string, score float64) domain.RankedChunk {
	return domain.RankedChunk{
		ChunkID:    id,
		DocumentID: "doc-" + id,
		Filename:   id + ".pdf",
		Content:    "contenido " + id,
		Score:      score,
	}
}

func chunks(ids ...string) []domain.RankedChunk {
	out := make([]domain.RankedChunk, len(ids))
	for i, id := range ids {
		out[i] = chunk(id, 1.0-float64(i)*0.1)
	}
	return out
}

func ids(results []domain.RankedChunk) []string {
	out := make([]string, len(results))
	for i := range results {
		out[i] = results[i].ChunkID
	}
	return out
}
