package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
	"github.com/custodia-labs/obra/internal/postprocessors"
)

// lineRegistry turns every line of a file into a section with row provenance.
type lineRegistry struct {
	err error
}

func (r *lineRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	var sections []domain.Section
	for i, line := range strings.Split(string(raw.Content), "\n") {
		sections = append(sections, domain.Section{
			Content:  line,
			Row:      domain.IntPtr(i + 1),
			Metadata: map[string]any{"source": "line"},
		})
	}
	return &driven.NormaliseResult{Sections: sections, Metadata: map[string]any{"mime": raw.MIMEType}}, nil
}

func (r *lineRegistry) Register(_ driven.Normaliser) {}

func (r *lineRegistry) SupportedMIMETypes() []string { return []string{MIMETypePlainText} }

type docFixture struct {
	docs      *mockDocumentStore
	content   *mockContentStore
	embedding *mockEmbeddingService
	registry  *lineRegistry
	service   *DocumentService
}

func newDocFixture(t *testing.T, limits domain.IngestSettings) *docFixture {
	t.Helper()
	pipeline, err := postprocessors.DefaultPipeline(limits)
	require.NoError(t, err)

	f := &docFixture{
		docs:      newMockDocumentStore(),
		content:   &mockContentStore{},
		embedding: &mockEmbeddingService{},
		registry:  &lineRegistry{},
	}
	f.service = NewDocumentService(f.docs, f.content, f.registry, pipeline, f.embedding, limits)
	return f
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDocumentService_Ingest(t *testing.T) {
	f := newDocFixture(t, domain.DefaultAppSettings().Ingest)
	path := writeFile(t, "tarifa 2024 (v2).txt", "Solera 24,50 €/m2\n\nTabique 18,00 €/m2")
	year := 2024

	doc, err := f.service.Ingest(context.Background(), driving.IngestRequest{
		Path:     path,
		Metadata: domain.DocumentMetadata{Category: "albañilería", PriceYear: &year},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.Equal(t, "tarifa_2024__v2_.txt", doc.Filename)
	assert.Equal(t, "tarifa 2024 (v2).txt", doc.OriginalFilename)
	assert.Equal(t, MIMETypePlainText, doc.MIMEType)
	assert.Equal(t, 2, doc.ChunkCount)
	assert.Equal(t, "albañilería", doc.Metadata.Category)

	stored, err := f.docs.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)

	require.Len(t, f.content.saved, 2)
	assert.Equal(t, "Solera 24,50 €/m2", f.content.saved[0].Content)
	assert.Equal(t, 1, *f.content.saved[0].Row)
	assert.Equal(t, 3, *f.content.saved[1].Row)
	assert.Equal(t, 1, f.content.saved[1].Position)
	assert.Equal(t, "line", f.content.saved[0].Metadata["source"])
	assert.Equal(t, MIMETypePlainText, f.content.saved[0].Metadata["mime"])
	assert.Len(t, f.content.embeddings, 2)
	assert.Contains(t, f.content.embeddings, f.content.saved[0].ID)
}

func TestDocumentService_Ingest_EmbedsInBatches(t *testing.T) {
	limits := domain.DefaultAppSettings().Ingest
	limits.EmbedBatchSize = 2
	f := newDocFixture(t, limits)
	path := writeFile(t, "lineas.txt", "a\nb\nc\nd\ne")

	doc, err := f.service.Ingest(context.Background(), driving.IngestRequest{Path: path})

	require.NoError(t, err)
	assert.Equal(t, 5, doc.ChunkCount)
	require.Len(t, f.embedding.batches, 3)
	assert.Equal(t, []string{"a", "b"}, f.embedding.batches[0])
	assert.Equal(t, []string{"e"}, f.embedding.batches[2])
}

func TestDocumentService_Ingest_CapsChunks(t *testing.T) {
	limits := domain.DefaultAppSettings().Ingest
	limits.MaxChunks = 3
	f := newDocFixture(t, limits)
	path := writeFile(t, "lineas.txt", "a\nb\nc\nd\ne")

	doc, err := f.service.Ingest(context.Background(), driving.IngestRequest{Path: path})

	require.NoError(t, err)
	assert.Equal(t, 3, doc.ChunkCount)
}

func TestDocumentService_Ingest_Rejections(t *testing.T) {
	limits := domain.DefaultAppSettings().Ingest
	limits.MaxFileSizeMB = 1
	f := newDocFixture(t, limits)

	_, err := f.service.Ingest(context.Background(), driving.IngestRequest{Path: writeFile(t, "plano.dwg", "x")})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	big := writeFile(t, "grande.txt", strings.Repeat("x", 1024*1024+1))
	_, err = f.service.Ingest(context.Background(), driving.IngestRequest{Path: big})
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)

	_, err = f.service.Ingest(context.Background(), driving.IngestRequest{Path: filepath.Join(t.TempDir(), "missing.txt")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Empty(t, f.docs.docs)
}

func TestDocumentService_Ingest_FailureMarksDocument(t *testing.T) {
	f := newDocFixture(t, domain.DefaultAppSettings().Ingest)
	f.embedding.batchErr = domain.ErrEmbeddingUnavailable
	path := writeFile(t, "precios.txt", "Solera")

	doc, err := f.service.Ingest(context.Background(), driving.IngestRequest{Path: path})

	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	require.NotNil(t, doc)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.NotEmpty(t, doc.ErrorMessage)

	stored, err := f.docs.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, []string{doc.ID}, f.content.deletedDocs)
}

func TestDocumentService_Ingest_NoContent(t *testing.T) {
	f := newDocFixture(t, domain.DefaultAppSettings().Ingest)
	path := writeFile(t, "vacio.txt", "  \n \n")

	doc, err := f.service.Ingest(context.Background(), driving.IngestRequest{Path: path})

	assert.ErrorIs(t, err, domain.ErrNoContent)
	assert.Equal(t, domain.StatusFailed, doc.Status)
}

func TestDocumentService_IngestBatch(t *testing.T) {
	f := newDocFixture(t, domain.DefaultAppSettings().Ingest)
	good := writeFile(t, "a.txt", "Solera")
	bad := writeFile(t, "b.exe", "MZ")
	other := writeFile(t, "c.md", "# Tabique")

	results := f.service.IngestBatch(context.Background(), []driving.IngestRequest{
		{Path: good}, {Path: bad}, {Path: other},
	})

	require.Len(t, results, 3)
	assert.Equal(t, good, results[0].Path)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, domain.ErrUnsupportedType)
	assert.Nil(t, results[1].Document)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, MIMETypeMarkdown, results[2].Document.MIMEType)
}

func TestDocumentService_GetContentAndDelete(t *testing.T) {
	f := newDocFixture(t, domain.DefaultAppSettings().Ingest)
	ctx := context.Background()
	require.NoError(t, f.docs.SaveDocument(ctx, &domain.Document{ID: "doc-1"}))
	f.docs.chunks["doc-1"] = []domain.Chunk{
		{ID: "c2", Position: 1, Content: "segundo"},
		{ID: "c1", Position: 0, Content: "primero"},
	}

	content, err := f.service.GetContent(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "primero\nsegundo", content)

	require.NoError(t, f.service.Delete(ctx, "doc-1"))
	assert.Equal(t, []string{"doc-1"}, f.content.deletedDocs)

	_, err = f.service.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.service.Delete(ctx, "doc-1"), domain.ErrNotFound)
	_, err = f.service.GetContent(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_List(t *testing.T) {
	f := newDocFixture(t, domain.DefaultAppSettings().Ingest)
	require.NoError(t, f.docs.SaveDocument(context.Background(), &domain.Document{ID: "a"}))

	docs, err := f.service.List(context.Background())

	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDocumentService_Ingest_NormaliseError(t *testing.T) {
	f := newDocFixture(t, domain.DefaultAppSettings().Ingest)
	f.registry.err = errors.New("corrupt")

	doc, err := f.service.Ingest(context.Background(), driving.IngestRequest{Path: writeFile(t, "x.txt", "x")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalise")
	assert.Equal(t, domain.StatusFailed, doc.Status)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"precios.pdf":        "precios.pdf",
		"../../etc/passwd":   "passwd",
		`C:\docs\tarifa.csv`: "tarifa.csv",
		"baño y cocina.bc3":  "ba_o_y_cocina.bc3",
		"a-b_c.d":            "a-b_c.d",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
	assert.Len(t, SanitizeFilename(strings.Repeat("x", 300)), MaxFilenameLength)
}

func TestMIMETypeForPath(t *testing.T) {
	mime, ok := MIMETypeForPath("/tmp/PRESUPUESTO.BC3")
	assert.True(t, ok)
	assert.Equal(t, MIMETypeBC3, mime)

	_, ok = MIMETypeForPath("foto.jpg")
	assert.False(t, ok)
	assert.Equal(t, []string{".bc3", ".csv", ".docx", ".md", ".pdf", ".txt"}, SupportedExtensions())
}
