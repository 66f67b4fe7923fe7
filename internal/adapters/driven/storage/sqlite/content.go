package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/custodia-labs/obra/internal/adapters/driven/storage"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/logger"
)

// contentStore implements driven.ContentStore.
type contentStore struct {
	store *Store
}

var _ driven.ContentStore = (*contentStore)(nil)

// SaveChunks stores chunks in one transaction. The FTS index follows via triggers.
func (s *contentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, position, content, page, row_number, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			position = excluded.position,
			content = excluded.content,
			page = excluded.page,
			row_number = excluded.row_number,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		metadataJSON, err := encodeMetadata(chunk.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Position, chunk.Content,
			nullInt(chunk.Page), nullInt(chunk.Row), metadataJSON); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveEmbeddings stores vectors keyed by chunk ID, replacing earlier ones.
func (s *contentStore) SaveEmbeddings(ctx context.Context, embeddings map[string][]float32, model string) error {
	if len(embeddings) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (chunk_id, model, dimensions, vector)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			model = excluded.model,
			dimensions = excluded.dimensions,
			vector = excluded.vector
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for chunkID, vec := range embeddings {
		if _, err := stmt.ExecContext(ctx, chunkID, model, len(vec), storage.EncodeVector(vec)); err != nil {
			return fmt.Errorf("saving embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteDocumentChunks removes a document's chunks; embeddings and index entries cascade.
func (s *contentStore) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// BeginRead opens a transaction that serves as the snapshot for one search.
func (s *contentStore) BeginRead(ctx context.Context) (driven.ContentReader, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning read: %w", err)
	}
	return &reader{tx: tx}, nil
}

// reader implements driven.ContentReader over a single *sql.Tx.
type reader struct {
	tx *sql.Tx
}

var _ driven.ContentReader = (*reader)(nil)

// Close rolls back the transaction; readers never write.
func (r *reader) Close() error {
	if err := r.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

// VectorSearch ranks every stored vector by cosine similarity.
func (r *reader) VectorSearch(ctx context.Context, query []float32, limit int, filters domain.SearchFilters) ([]domain.RankedChunk, error) {
	where, args := filterClause(filters)
	return r.vectorSearch(ctx, query, limit, where, args)
}

// VectorSearchInDocument ranks the vectors of one document.
func (r *reader) VectorSearchInDocument(ctx context.Context, documentID string, query []float32, limit int) ([]domain.RankedChunk, error) {
	return r.vectorSearch(ctx, query, limit, " AND c.document_id = ?", []any{documentID})
}

func (r *reader) vectorSearch(ctx context.Context, query []float32, limit int, where string, args []any) ([]domain.RankedChunk, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}

	rows, err := r.tx.QueryContext(ctx, `
		SELECT e.chunk_id, e.vector
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE 1 = 1`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}

	var candidates []storage.Scored
	skipped := 0
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		vec := storage.DecodeVector(blob)
		if len(vec) != len(query) {
			skipped++
			continue
		}
		candidates = append(candidates, storage.Scored{ID: id, Score: storage.Cosine(query, vec)})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	if skipped > 0 {
		logger.Debug("Vector search skipped %d embeddings with a different dimension", skipped)
	}

	top := storage.TopK(candidates, limit)
	if len(top) == 0 {
		return nil, nil
	}

	ids := make([]string, len(top))
	for i, c := range top {
		ids[i] = c.ID
	}
	byID, err := r.chunksByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RankedChunk, 0, len(top))
	for _, c := range top {
		rc, ok := byID[c.ID]
		if !ok {
			continue
		}
		rc.Score = c.Score
		results = append(results, rc)
	}
	return results, nil
}

func (r *reader) chunksByID(ctx context.Context, ids []string) (map[string]domain.RankedChunk, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.tx.QueryContext(ctx, `
		SELECT c.id, c.document_id, d.filename, c.content, c.page, c.row_number, c.metadata, 0.0
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.RankedChunk, len(ids))
	for rows.Next() {
		rc, err := scanRanked(rows)
		if err != nil {
			return nil, err
		}
		byID[rc.ChunkID] = rc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return byID, nil
}

// LexicalSearch ranks chunks by FTS5 bm25 over the query's terms, any of
// which may match. Scores are negated bm25 values, higher is better.
func (r *reader) LexicalSearch(ctx context.Context, query string, limit int, filters domain.SearchFilters) ([]domain.RankedChunk, error) {
	match := matchExpression(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	where, args := filterClause(filters)
	args = append([]any{match}, args...)
	args = append(args, limit)

	rows, err := r.tx.QueryContext(ctx, `
		SELECT c.id, c.document_id, d.filename, c.content, c.page, c.row_number, c.metadata, -bm25(chunks_fts)
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ?`+where+`
		ORDER BY bm25(chunks_fts)
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("full-text query: %w", err)
	}
	defer rows.Close()

	var results []domain.RankedChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		rc, err := scanRanked(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full-text results: %w", err)
	}
	return results, nil
}

// matchExpression quotes each query term and ORs them, so user punctuation
// never reaches the FTS5 query parser.
func matchExpression(query string) string {
	terms := storage.Terms(query)
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}

// filterClause renders the set filters as parameterised AND conditions on d.
func filterClause(f domain.SearchFilters) (string, []any) {
	var b strings.Builder
	var args []any
	if f.DocumentType != "" {
		b.WriteString(" AND d.document_type = ?")
		args = append(args, f.DocumentType)
	}
	if f.Category != "" {
		b.WriteString(" AND d.category = ?")
		args = append(args, f.Category)
	}
	if f.GeographicZone != "" {
		b.WriteString(" AND d.geographic_zone = ?")
		args = append(args, f.GeographicZone)
	}
	if f.PriceYear != nil {
		b.WriteString(" AND d.price_year = ?")
		args = append(args, *f.PriceYear)
	}
	return b.String(), args
}

func scanRanked(rows *sql.Rows) (domain.RankedChunk, error) {
	var rc domain.RankedChunk
	var page, row sql.NullInt64
	var metadataJSON string
	if err := rows.Scan(&rc.ChunkID, &rc.DocumentID, &rc.Filename, &rc.Content,
		&page, &row, &metadataJSON, &rc.Score); err != nil {
		return rc, fmt.Errorf("scanning chunk: %w", err)
	}
	rc.Page = intPtr(page)
	rc.Row = intPtr(row)
	var err error
	if rc.Metadata, err = decodeMetadata(metadataJSON); err != nil {
		return rc, err
	}
	return rc, nil
}
