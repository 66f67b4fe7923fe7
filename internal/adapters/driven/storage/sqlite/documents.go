package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// documentFields is the column order shared by insert and scan.
var documentFields = []string{
	"id", "filename", "original_filename", "path", "mime_type", "size", "status", "error_message",
	"chunk_count", "document_type", "category", "geographic_zone", "price_year", "created_at", "updated_at",
}

var (
	documentColumns = strings.Join(documentFields, ", ")
	upsertDocument  = buildUpsert()
)

// buildUpsert inserts a document or overwrites every column but id and created_at.
func buildUpsert() string {
	var set []string
	for _, f := range documentFields {
		if f != "id" && f != "created_at" {
			set = append(set, f+" = excluded."+f)
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(documentFields)), ", ")
	return "INSERT INTO documents (" + documentColumns + ") VALUES (" + placeholders +
		") ON CONFLICT(id) DO UPDATE SET " + strings.Join(set, ", ")
}

// SaveDocument inserts or updates doc, stamping missing timestamps.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	m := doc.Metadata
	_, err := s.store.db.ExecContext(ctx, upsertDocument,
		doc.ID, doc.Filename, doc.OriginalFilename, doc.Path, doc.MIMEType, doc.Size,
		string(doc.Status), doc.ErrorMessage, doc.ChunkCount,
		m.DocumentType, m.Category, m.GeographicZone, nullInt(m.PriceYear),
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetChunks retrieves all chunks for a document in position order.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, position, content, page, row_number, metadata
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var page, row sql.NullInt64
		var metadataJSON string
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position, &chunk.Content,
			&page, &row, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Page = intPtr(page)
		chunk.Row = intPtr(row)
		if chunk.Metadata, err = decodeMetadata(metadataJSON); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// DeleteDocument removes a document; chunks, embeddings and index entries cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListDocuments returns all documents, newest first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var priceYear sql.NullInt64
	err := row.Scan(&doc.ID, &doc.Filename, &doc.OriginalFilename, &doc.Path, &doc.MIMEType, &doc.Size,
		&status, &doc.ErrorMessage, &doc.ChunkCount,
		&doc.Metadata.DocumentType, &doc.Metadata.Category, &doc.Metadata.GeographicZone,
		&priceYear, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	doc.Metadata.PriceYear = intPtr(priceYear)
	return &doc, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshalling chunk metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(s string) (map[string]any, error) {
	if s == "" || s == "{}" || s == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
	}
	return m, nil
}
