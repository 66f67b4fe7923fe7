package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	bleveunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/custodia-labs/obra/internal/adapters/driven/storage"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

// Ensure Store implements both storage ports.
var (
	_ driven.DocumentStore = (*Store)(nil)
	_ driven.ContentStore  = (*Store)(nil)
)

const (
	contentField   = "content"
	foldedAnalyzer = "folded"
)

// Store is an in-memory document and content store, used for ephemeral runs
// and tests. Lexical ranking uses an in-memory bleve index over folded text.
//
// Every saved chunk version is indexed under its sequence number. Versions
// replaced or deleted while a reader is open stay in the index, retired,
// until the last reader closes, so snapshots keep seeing what they captured.
type Store struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	entries   map[string]*entry
	seq       int

	index   bleve.Index
	readers int
	retired []string
}

// entry is an indexed chunk. Entries are replaced, never mutated, so readers
// may hold them after the lock is released.
type entry struct {
	seq    int
	chunk  domain.Chunk
	vector []float32
}

func (e *entry) key() string { return strconv.Itoa(e.seq) }

// NewStore creates an empty in-memory store.
func NewStore() (*Store, error) {
	im, err := lexicalMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}
	return &Store{
		documents: make(map[string]domain.Document),
		entries:   make(map[string]*entry),
		index:     index,
	}, nil
}

// lexicalMapping tokenises on Unicode word boundaries and lowercases.
// Content is folded before indexing, so no stemming or stop words apply.
func lexicalMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(foldedAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     bleveunicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}
	im.DefaultAnalyzer = foldedAnalyzer
	return im, nil
}

// Close releases the lexical index.
func (s *Store) Close() error {
	return s.index.Close()
}

// SaveDocument stores or updates a document.
func (s *Store) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetChunks retrieves all chunks for a document in position order.
func (s *Store) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chunks []domain.Chunk
	for _, e := range s.entries {
		if e.chunk.DocumentID == documentID {
			chunks = append(chunks, e.chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Position < chunks[j].Position })
	return chunks, nil
}

// DeleteDocument removes a document and its chunks.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	s.deleteChunksLocked(id)
	return s.collectLocked()
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// SaveChunks indexes chunks, replacing any with the same ID.
func (s *Store) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.index.NewBatch()
	for _, c := range chunks {
		var vector []float32
		if old, ok := s.entries[c.ID]; ok {
			vector = old.vector
			s.retired = append(s.retired, old.key())
		}
		s.seq++
		e := &entry{seq: s.seq, chunk: c, vector: vector}
		if err := batch.Index(e.key(), map[string]any{contentField: storage.Fold(c.Content)}); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
		s.entries[c.ID] = e
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	return s.collectLocked()
}

// SaveEmbeddings attaches vectors to stored chunks. Unknown IDs are ignored.
func (s *Store) SaveEmbeddings(_ context.Context, embeddings map[string][]float32, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, vec := range embeddings {
		old, ok := s.entries[id]
		if !ok {
			continue
		}
		updated := *old
		updated.vector = append([]float32(nil), vec...)
		s.entries[id] = &updated
	}
	return nil
}

// DeleteDocumentChunks removes a document's chunks.
func (s *Store) DeleteDocumentChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteChunksLocked(documentID)
	return s.collectLocked()
}

func (s *Store) deleteChunksLocked(documentID string) {
	for id, e := range s.entries {
		if e.chunk.DocumentID == documentID {
			s.retired = append(s.retired, e.key())
			delete(s.entries, id)
		}
	}
}

// collectLocked drops retired versions from the index once no reader can
// still ask for them.
func (s *Store) collectLocked() error {
	if s.readers > 0 || len(s.retired) == 0 {
		return nil
	}
	batch := s.index.NewBatch()
	for _, key := range s.retired {
		batch.Delete(key)
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("drop retired chunks: %w", err)
	}
	s.retired = nil
	return nil
}

// BeginRead captures the current chunks and documents as a snapshot.
func (s *Store) BeginRead(_ context.Context) (driven.ContentReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &snapshot{
		store:     s,
		entries:   make([]*entry, 0, len(s.entries)),
		bySeq:     make(map[string]*entry, len(s.entries)),
		documents: make(map[string]domain.Document, len(s.documents)),
	}
	for _, e := range s.entries {
		snap.entries = append(snap.entries, e)
		snap.bySeq[e.key()] = e
	}
	s.readers++
	sort.Slice(snap.entries, func(i, j int) bool { return snap.entries[i].seq < snap.entries[j].seq })
	for id, doc := range s.documents {
		snap.documents[id] = doc
	}
	return snap, nil
}

// snapshot implements driven.ContentReader over a frozen view.
type snapshot struct {
	store     *Store
	entries   []*entry
	bySeq     map[string]*entry
	documents map[string]domain.Document

	closeOnce sync.Once
	closeErr  error
}

// Close releases the snapshot. Closing twice is a no-op.
func (r *snapshot) Close() error {
	r.closeOnce.Do(func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		r.store.readers--
		r.closeErr = r.store.collectLocked()
	})
	return r.closeErr
}

// VectorSearch ranks chunks by cosine similarity.
func (r *snapshot) VectorSearch(_ context.Context, query []float32, limit int, filters domain.SearchFilters) ([]domain.RankedChunk, error) {
	return r.vectorSearch(query, limit, func(_ *entry, doc domain.Document) bool {
		return filters.Matches(doc.Metadata)
	}), nil
}

// VectorSearchInDocument ranks one document's chunks by cosine similarity.
func (r *snapshot) VectorSearchInDocument(_ context.Context, documentID string, query []float32, limit int) ([]domain.RankedChunk, error) {
	return r.vectorSearch(query, limit, func(e *entry, _ domain.Document) bool {
		return e.chunk.DocumentID == documentID
	}), nil
}

func (r *snapshot) vectorSearch(query []float32, limit int, keep func(*entry, domain.Document) bool) []domain.RankedChunk {
	if limit <= 0 || len(query) == 0 {
		return nil
	}
	var scored []storage.Scored
	byID := make(map[string]*entry)
	for _, e := range r.entries {
		doc, ok := r.documents[e.chunk.DocumentID]
		if !ok || len(e.vector) != len(query) || !keep(e, doc) {
			continue
		}
		scored = append(scored, storage.Scored{ID: e.chunk.ID, Score: storage.Cosine(query, e.vector)})
		byID[e.chunk.ID] = e
	}
	return r.ranked(storage.TopK(scored, limit), byID)
}

// LexicalSearch ranks chunks containing any query term by bleve's
// relevance score. Only chunk versions captured by the snapshot are returned.
func (r *snapshot) LexicalSearch(ctx context.Context, q string, limit int, filters domain.SearchFilters) ([]domain.RankedChunk, error) {
	terms := storage.Terms(q)
	if len(terms) == 0 || limit <= 0 || len(r.bySeq) == 0 {
		return nil, nil
	}

	disjuncts := make([]query.Query, len(terms))
	for i, t := range terms {
		tq := bleve.NewTermQuery(t)
		tq.SetField(contentField)
		disjuncts[i] = tq
	}
	total, err := r.store.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count indexed chunks: %w", err)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(disjuncts...), int(total), 0, false)
	res, err := r.store.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	var scored []storage.Scored
	byID := make(map[string]*entry)
	for _, hit := range res.Hits {
		e, ok := r.bySeq[hit.ID]
		if !ok || hit.Score <= 0 {
			continue
		}
		doc, ok := r.documents[e.chunk.DocumentID]
		if !ok || !filters.Matches(doc.Metadata) {
			continue
		}
		scored = append(scored, storage.Scored{ID: e.chunk.ID, Score: hit.Score})
		byID[e.chunk.ID] = e
	}
	return r.ranked(storage.TopK(scored, limit), byID), nil
}

func (r *snapshot) ranked(top []storage.Scored, byID map[string]*entry) []domain.RankedChunk {
	if len(top) == 0 {
		return nil
	}
	out := make([]domain.RankedChunk, len(top))
	for i, sc := range top {
		c := byID[sc.ID].chunk
		out[i] = domain.RankedChunk{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Filename:   r.documents[c.DocumentID].Filename,
			Content:    c.Content,
			Score:      sc.Score,
			Page:       c.Page,
			Row:        c.Row,
			Metadata:   c.Metadata,
		}
	}
	return out
}
