package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"documents", "docs"},
	Short:   "Manage indexed documents",
	Long:    `List, view, or remove indexed documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentDeleteCmd = &cobra.Command{
	Use:     "delete [doc-id]",
	Aliases: []string{"rm"},
	Short:   "Remove a document from the index",
	Long:    `Removes a document together with its chunks and embeddings.`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDocumentDelete,
}

var documentJSON bool

func init() {
	documentListCmd.Flags().BoolVar(&documentJSON, "json", false, "output documents as JSON")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

// documentOutput is the JSON shape of a document.
type documentOutput struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Size       int64  `json:"size"`
	Error      string `json:"error,omitempty"`
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentJSON {
		out := make([]documentOutput, len(docs))
		for i, d := range docs {
			out[i] = documentOutput{
				ID:         d.ID,
				Filename:   d.Filename,
				Path:       d.Path,
				Status:     string(d.Status),
				ChunkCount: d.ChunkCount,
				Size:       d.Size,
				Error:      d.ErrorMessage,
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No documents indexed. Add some with 'obra ingest <path>'.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    File:   %s\n", docs[i].Filename)
		cmd.Printf("    Status: %s (%d chunks)\n", docs[i].Status, docs[i].ChunkCount)
		if docs[i].ErrorMessage != "" {
			cmd.Printf("    Error:  %s\n", docs[i].ErrorMessage)
		}
		cmd.Println()
	}

	chunks := 0
	for i := range docs {
		chunks += docs[i].ChunkCount
	}
	cmd.Printf("Total: %d documents, %s chunks\n", len(docs), humanize.Comma(int64(chunks)))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  File:     %s\n", doc.Filename)
	if doc.OriginalFilename != "" && doc.OriginalFilename != doc.Filename {
		cmd.Printf("  Original: %s\n", doc.OriginalFilename)
	}
	cmd.Printf("  Path:     %s\n", doc.Path)
	cmd.Printf("  Type:     %s\n", doc.MIMEType)
	cmd.Printf("  Size:     %s\n", humanize.Bytes(uint64(max(doc.Size, 0))))
	cmd.Printf("  Status:   %s\n", doc.Status)
	cmd.Printf("  Chunks:   %d\n", doc.ChunkCount)
	if doc.ErrorMessage != "" {
		cmd.Printf("  Error:    %s\n", doc.ErrorMessage)
	}
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	m := doc.Metadata
	if m.DocumentType != "" || m.Category != "" || m.GeographicZone != "" || m.PriceYear != nil {
		cmd.Println("\n  Metadata:")
		if m.DocumentType != "" {
			cmd.Printf("    type: %s\n", m.DocumentType)
		}
		if m.Category != "" {
			cmd.Printf("    category: %s\n", m.Category)
		}
		if m.GeographicZone != "" {
			cmd.Printf("    zone: %s\n", m.GeographicZone)
		}
		if m.PriceYear != nil {
			cmd.Printf("    year: %d\n", *m.PriceYear)
		}
	}

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	content, err := documentService.GetContent(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	cmd.Println(content)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s removed from index.\n", args[0])
	return nil
}
