package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// queryDefaults holds the configured RAG defaults used when flags are unset.
var queryDefaults = domain.DefaultAppSettings().RAG

var (
	queryMaxResults int
	queryMinScore   float64
	querySession    string
	queryJSON       bool
	queryPlain      bool
	queryFilters    filterFlags
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a cost question",
	Long: `Answers a cost question from the indexed documents.

The most relevant fragments are retrieved with hybrid search and passed to the
language model together with their provenance (document, page, row). When no
fragment reaches the minimum score the answer is a market estimate, clearly
labelled as such.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryMaxResults, "max-results", "n", 0, "fragments to retrieve, 1-20 (default from settings)")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", 0, "relevance threshold, 0-1 (default from settings)")
	queryCmd.Flags().StringVarP(&querySession, "session", "s", "", "conversation id to keep history")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the response as JSON")
	queryCmd.Flags().BoolVar(&queryPlain, "plain", false, "print the answer without markdown rendering")
	queryFilters.register(queryCmd.Flags())
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errors.New("query service not configured")
	}

	req := domain.QueryRequest{
		Query:      args[0],
		MaxResults: queryDefaults.MaxResults,
		Filters:    queryFilters.filters(cmd),
		SessionID:  querySession,
	}
	if cmd.Flags().Changed("max-results") {
		req.MaxResults = queryMaxResults
	}
	minScore := queryDefaults.MinScore
	if cmd.Flags().Changed("min-score") {
		minScore = queryMinScore
	}
	req.MinScore = &minScore

	resp, err := ragService.Query(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("query failed: %w", userError(err))
	}

	if queryJSON {
		return outputQueryJSON(cmd, resp)
	}
	return outputQueryText(cmd, resp)
}

// queryOutput is the JSON shape of a query response.
type queryOutput struct {
	Answer           string         `json:"answer"`
	Sources          []sourceOutput `json:"sources"`
	SessionID        string         `json:"session_id,omitempty"`
	ResultsCount     int            `json:"results_count"`
	MaxScore         float64        `json:"max_score"`
	IsMarketEstimate bool           `json:"is_market_estimate"`
	MinScoreUsed     float64        `json:"min_score_used"`
}

// sourceOutput is the JSON shape of one retrieved fragment.
type sourceOutput struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Page       *int    `json:"page,omitempty"`
	Row        *int    `json:"row,omitempty"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

func toSourceOutputs(chunks []domain.RankedChunk) []sourceOutput {
	out := make([]sourceOutput, len(chunks))
	for i, c := range chunks {
		out[i] = sourceOutput{
			DocumentID: c.DocumentID,
			Filename:   c.Filename,
			Page:       c.Page,
			Row:        c.Row,
			Score:      c.Score,
			Content:    c.Content,
		}
	}
	return out
}

func outputQueryJSON(cmd *cobra.Command, resp *domain.QueryResponse) error {
	data, err := json.MarshalIndent(queryOutput{
		Answer:           resp.Answer,
		Sources:          toSourceOutputs(resp.Sources),
		SessionID:        resp.SessionID,
		ResultsCount:     resp.Metadata.ResultsCount,
		MaxScore:         resp.Metadata.MaxScore,
		IsMarketEstimate: resp.Metadata.IsMarketEstimate,
		MinScoreUsed:     resp.Metadata.MinScoreUsed,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryText(cmd *cobra.Command, resp *domain.QueryResponse) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderMarkdown(out, resp.Answer, queryPlain))

	if resp.Metadata.IsMarketEstimate {
		fmt.Fprintf(out, "No indexed fragment reached score %.2f.\n", resp.Metadata.MinScoreUsed)
		return nil
	}

	fmt.Fprintln(out, "Sources:")
	for i, s := range resp.Sources {
		fmt.Fprintf(out, "  [%d] %s (%.2f)\n", i+1, provenance(s), s.Score)
	}
	return nil
}

// provenance formats where a fragment came from.
func provenance(c domain.RankedChunk) string {
	s := c.Filename
	if s == "" {
		s = c.DocumentID
	}
	if c.Page != nil {
		s += fmt.Sprintf(", page %d", *c.Page)
	}
	if c.Row != nil {
		s += fmt.Sprintf(", row %d", *c.Row)
	}
	return s
}

// renderMarkdown renders text with glamour when w is a terminal.
// Rendering failures fall back to the raw text.
func renderMarkdown(w io.Writer, text string, plain bool) string {
	if plain || !isTerminal(w) {
		return text
	}
	width := 100
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
			width = cols - 4
		}
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return text
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
