package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
	"github.com/custodia-labs/obra/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// MIME types of the accepted file extensions.
const (
	MIMETypePDF       = "application/pdf"
	MIMETypePlainText = "text/plain"
	MIMETypeMarkdown  = "text/markdown"
	MIMETypeCSV       = "text/csv"
	MIMETypeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMETypeBC3       = "application/x-fiebdc"
)

// MaxFilenameLength bounds stored file names.
const MaxFilenameLength = 255

// batchConcurrency bounds files ingested at once by IngestBatch.
const batchConcurrency = 2

var extensionMIMETypes = map[string]string{
	".pdf":  MIMETypePDF,
	".txt":  MIMETypePlainText,
	".md":   MIMETypeMarkdown,
	".csv":  MIMETypeCSV,
	".docx": MIMETypeDOCX,
	".bc3":  MIMETypeBC3,
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w.\-]`)

// MIMETypeForPath returns the MIME type for an accepted file extension.
func MIMETypeForPath(path string) (string, bool) {
	mime, ok := extensionMIMETypes[strings.ToLower(filepath.Ext(path))]
	return mime, ok
}

// SupportedExtensions returns the accepted file extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionMIMETypes))
	for ext := range extensionMIMETypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// SanitizeFilename keeps the base name with every character other than
// letters, digits, underscore, dot and hyphen replaced by "_".
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(name) > MaxFilenameLength {
		name = name[:MaxFilenameLength]
	}
	return name
}

// DocumentService ingests files and manages stored documents.
type DocumentService struct {
	docStore  driven.DocumentStore
	content   driven.ContentStore
	registry  driven.NormaliserRegistry
	pipeline  driven.PostProcessorPipeline
	embedding driven.EmbeddingService
	limits    domain.IngestSettings
	now       func() time.Time
}

// NewDocumentService creates a new document service.
// The registry, pipeline and embedding parameters are only needed for ingestion.
func NewDocumentService(
	docStore driven.DocumentStore,
	content driven.ContentStore,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	embedding driven.EmbeddingService,
	limits domain.IngestSettings,
) *DocumentService {
	defaults := domain.DefaultAppSettings().Ingest
	if limits.MaxFileSizeMB <= 0 {
		limits.MaxFileSizeMB = defaults.MaxFileSizeMB
	}
	if limits.EmbedBatchSize <= 0 {
		limits.EmbedBatchSize = defaults.EmbedBatchSize
	}
	return &DocumentService{
		docStore:  docStore,
		content:   content,
		registry:  registry,
		pipeline:  pipeline,
		embedding: embedding,
		limits:    limits,
		now:       time.Now,
	}
}

// Ingest reads, normalises, chunks, embeds and stores one file.
//
// Files are rejected before registration when their type or size is not
// accepted. Once registered, a failure marks the document failed, records
// the message, and returns the document together with the error.
func (s *DocumentService) Ingest(ctx context.Context, req driving.IngestRequest) (*domain.Document, error) {
	logger.Section("Ingest")
	logger.Debug("Path: %s", req.Path)

	mime, ok := MIMETypeForPath(req.Path)
	if !ok {
		return nil, fmt.Errorf("%w: %s (accepted: %s)",
			domain.ErrUnsupportedType, filepath.Ext(req.Path), strings.Join(SupportedExtensions(), " "))
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", req.Path, err)
	}
	if info.IsDir() {
		return nil, domain.NewValidationError("path", "is a directory")
	}
	maxBytes := int64(s.limits.MaxFileSizeMB) * 1024 * 1024
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d MB)", domain.ErrFileTooLarge, info.Size(), s.limits.MaxFileSizeMB)
	}

	now := s.now()
	doc := &domain.Document{
		ID:               uuid.New().String(),
		Filename:         SanitizeFilename(info.Name()),
		OriginalFilename: info.Name(),
		Path:             req.Path,
		MIMEType:         mime,
		Size:             info.Size(),
		Status:           domain.StatusPending,
		Metadata:         req.Metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	if err := s.process(ctx, doc); err != nil {
		logger.Warn("Ingest %s failed: %v", doc.Filename, err)
		if cerr := s.content.DeleteDocumentChunks(context.WithoutCancel(ctx), doc.ID); cerr != nil {
			logger.Debug("Cleanup chunks of %s: %v", doc.ID, cerr)
		}
		doc.Status = domain.StatusFailed
		doc.ErrorMessage = err.Error()
		doc.ChunkCount = 0
		doc.UpdatedAt = s.now()
		if serr := s.docStore.SaveDocument(context.WithoutCancel(ctx), doc); serr != nil {
			logger.Warn("Record failure of %s: %v", doc.ID, serr)
		}
		return doc, err
	}

	logger.Info("Ingested %s: %d chunks", doc.Filename, doc.ChunkCount)
	return doc, nil
}

// process runs normalise, chunk, embed and store for a registered document.
func (s *DocumentService) process(ctx context.Context, doc *domain.Document) error {
	if s.registry == nil || s.pipeline == nil {
		return errors.New("ingestion pipeline not configured")
	}
	if s.embedding == nil {
		return domain.ErrEmbeddingUnavailable
	}

	doc.Status = domain.StatusProcessing
	doc.UpdatedAt = s.now()
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	raw, err := os.ReadFile(doc.Path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	result, err := s.registry.Normalise(ctx, &domain.RawDocument{
		Path:     doc.Path,
		Filename: doc.Filename,
		MIMEType: doc.MIMEType,
		Content:  raw,
	})
	if err != nil {
		return fmt.Errorf("normalise: %w", err)
	}
	logger.Debug("Normalised %s: %d sections", doc.Filename, len(result.Sections))

	chunks, err := s.pipeline.Process(ctx, doc, sectionChunks(doc.ID, result))
	if err != nil {
		return fmt.Errorf("post-process: %w", err)
	}
	if len(chunks) == 0 {
		return domain.ErrNoContent
	}

	embeddings, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	if err := s.content.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	if err := s.content.SaveEmbeddings(ctx, embeddings, s.embedding.ModelName()); err != nil {
		return fmt.Errorf("save embeddings: %w", err)
	}

	doc.Status = domain.StatusCompleted
	doc.ChunkCount = len(chunks)
	doc.ErrorMessage = ""
	doc.UpdatedAt = s.now()
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// sectionChunks makes one chunk per non-empty section, ready for the pipeline.
func sectionChunks(documentID string, result *driven.NormaliseResult) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(result.Sections))
	for _, sec := range result.Sections {
		if strings.TrimSpace(sec.Content) == "" {
			continue
		}
		meta := make(map[string]any, len(result.Metadata)+len(sec.Metadata))
		for k, v := range result.Metadata {
			meta[k] = v
		}
		for k, v := range sec.Metadata {
			meta[k] = v
		}
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			Position:   len(chunks),
			Content:    sec.Content,
			Page:       sec.Page,
			Row:        sec.Row,
			Metadata:   meta,
		})
	}
	return chunks
}

// embedChunks embeds chunk contents in batches and returns vectors by chunk ID.
func (s *DocumentService) embedChunks(ctx context.Context, chunks []domain.Chunk) (map[string][]float32, error) {
	embeddings := make(map[string][]float32, len(chunks))
	for start := 0; start < len(chunks); start += s.limits.EmbedBatchSize {
		end := min(start+s.limits.EmbedBatchSize, len(chunks))
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Content
		}

		vectors, err := s.embedding.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vectors))
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
			embeddings[chunks[start+i].ID] = v
		}
		logger.Debug("Embedded chunks %d-%d of %d", start, end, len(chunks))
	}
	return embeddings, nil
}

// IngestBatch ingests several files; one failing file never stops the others.
// Results are in request order.
func (s *DocumentService) IngestBatch(ctx context.Context, reqs []driving.IngestRequest) []driving.IngestResult {
	results := make([]driving.IngestResult, len(reqs))
	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i := range reqs {
		g.Go(func() error {
			doc, err := s.Ingest(ctx, reqs[i])
			results[i] = driving.IngestResult{Path: reqs[i].Path, Document: doc, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// List returns all documents.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetContent returns the concatenated content of all chunks.
func (s *DocumentService) GetContent(ctx context.Context, documentID string) (string, error) {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return "", err
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return "", err
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Position < chunks[j].Position
	})

	var builder strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(chunk.Content)
	}
	return builder.String(), nil
}

// Delete removes a document with its chunks and embeddings.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.content.DeleteDocumentChunks(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.Info("Deleted document %s", documentID)
	return nil
}
