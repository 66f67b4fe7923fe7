package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/obra/internal/core/domain"
)

const (
	documentsURI = "obra://documents"
	mimeJSON     = "application/json"
	mimeText     = "text/plain"
)

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         documentsURI,
		Name:        "documents",
		Description: "Indexed documents with their status and metadata",
		MIMEType:    mimeJSON,
	}, s.readDocuments)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: documentsURI + "/{documentId}",
		Name:        "document-content",
		Description: "Extracted text of one document",
		MIMEType:    mimeText,
	}, s.readDocumentContent)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: documentsURI + "/{documentId}/details",
		Name:        "document-details",
		Description: "Full record of one document, including failures",
		MIMEType:    mimeJSON,
	}, s.readDocumentDetails)
}

// documentInfo is the JSON shape of a document. The list carries the
// summary fields only; details fills the rest.
type documentInfo struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	URI        string `json:"uri"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Type       string `json:"document_type,omitempty"`
	Category   string `json:"category,omitempty"`
	Zone       string `json:"geographic_zone,omitempty"`
	PriceYear  *int   `json:"price_year,omitempty"`

	Path      string     `json:"path,omitempty"`
	MIMEType  string     `json:"mime_type,omitempty"`
	Size      int64      `json:"size,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func summarise(doc *domain.Document) documentInfo {
	return documentInfo{
		ID:         doc.ID,
		Filename:   doc.Filename,
		URI:        documentsURI + "/" + doc.ID,
		Status:     string(doc.Status),
		ChunkCount: doc.ChunkCount,
		Type:       doc.Metadata.DocumentType,
		Category:   doc.Metadata.Category,
		Zone:       doc.Metadata.GeographicZone,
		PriceYear:  doc.Metadata.PriceYear,
	}
}

func describe(doc *domain.Document) documentInfo {
	info := summarise(doc)
	info.Path = doc.Path
	info.MIMEType = doc.MIMEType
	info.Size = doc.Size
	info.Error = doc.ErrorMessage
	created, updated := doc.CreatedAt, doc.UpdatedAt
	info.CreatedAt, info.UpdatedAt = &created, &updated
	return info
}

func (s *Server) readDocuments(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	infos := []documentInfo{}
	if s.ports.Document != nil {
		docs, err := s.ports.Document.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing documents: %w", err)
		}
		for i := range docs {
			infos = append(infos, summarise(&docs[i]))
		}
	}
	return jsonResource(req.Params.URI, infos)
}

func (s *Server) readDocumentContent(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id, sub := parseDocumentURI(uri)
	if s.ports.Document == nil || id == "" || sub != "" {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	content, err := s.ports.Document.GetContent(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document content: %w", err)
	}
	return textResource(uri, mimeText, content), nil
}

func (s *Server) readDocumentDetails(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id, sub := parseDocumentURI(uri)
	if s.ports.Document == nil || id == "" || sub != "details" {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	doc, err := s.ports.Document.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && doc == nil) {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return jsonResource(uri, describe(doc))
}

// parseDocumentURI splits obra://documents/{id}[/{sub}]. id is "" when the
// URI is not a document URI or has more than one trailing segment.
func parseDocumentURI(uri string) (id, sub string) {
	rest, ok := strings.CutPrefix(uri, documentsURI+"/")
	if !ok {
		return "", ""
	}
	id, sub, _ = strings.Cut(rest, "/")
	if strings.Contains(sub, "/") {
		return "", ""
	}
	return id, sub
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", uri, err)
	}
	return textResource(uri, mimeJSON, string(data)), nil
}

func textResource(uri, mime, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mime, Text: text}},
	}
}
