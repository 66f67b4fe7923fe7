package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// snippetRunes bounds the one-line preview printed per result.
const snippetRunes = 160

var (
	searchLimit    int
	searchMinScore float64
	searchDocument string
	searchJSON     bool
	searchFull     bool
	searchFilters  filterFlags
)

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search indexed documents",
	Long: `Runs a hybrid search over the indexed documents: keyword (BM25) and
semantic (vector) rankings merged with reciprocal rank fusion. Scores are
normalised so 1.0 means first in both rankings.

Every argument is part of the query, so quoting is optional.

Examples:
  obra search tabique ladrillo hueco
  obra search --year 2024 --zone Madrid enlucido de yeso
  obra search --document 3f2a... --full solado`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	f.Float64Var(&searchMinScore, "min-score", 0, "drop results below this normalised score")
	f.StringVarP(&searchDocument, "document", "d", "", "search only within this document id")
	f.BoolVar(&searchJSON, "json", false, "output results as JSON")
	f.BoolVar(&searchFull, "full", false, "print whole fragments instead of one-line previews")
	searchFilters.register(f)
	for _, filter := range []string{"type", "category", "zone", "year"} {
		searchCmd.MarkFlagsMutuallyExclusive("document", filter)
	}
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	query := strings.Join(args, " ")

	var (
		results []domain.RankedChunk
		err     error
	)
	if searchDocument != "" {
		results, err = searchService.SearchWithinDocument(cmd.Context(), searchDocument, query, searchLimit)
		results = aboveScore(results, searchMinScore)
	} else {
		results, err = searchService.Search(cmd.Context(), domain.SearchRequest{
			Query:      query,
			MaxResults: searchLimit,
			Filters:    searchFilters.filters(cmd),
			MinScore:   searchMinScore,
		})
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", userError(err))
	}

	if searchJSON {
		data, err := json.MarshalIndent(toSourceOutputs(results), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printResults(cmd, query, results)
	return nil
}

// aboveScore keeps results scoring at least min. Search applies MinScore
// itself; document-scoped searches do not take one.
func aboveScore(results []domain.RankedChunk, min float64) []domain.RankedChunk {
	if min <= 0 {
		return results
	}
	kept := make([]domain.RankedChunk, 0, len(results))
	for _, r := range results {
		if r.Score >= min {
			kept = append(kept, r)
		}
	}
	return kept
}

func printResults(cmd *cobra.Command, query string, results []domain.RankedChunk) {
	if len(results) == 0 {
		cmd.Printf("No results found for %q.\n", query)
		return
	}

	cmd.Printf("%d results for %q:\n\n", len(results), query)
	for i := range results {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, provenance(results[i]), results[i].Score)
		if searchFull {
			for _, line := range strings.Split(strings.TrimSpace(results[i].Content), "\n") {
				cmd.Printf("      %s\n", line)
			}
		} else if s := snippet(results[i].Content, snippetRunes); s != "" {
			cmd.Printf("      %s\n", s)
		}
		cmd.Println()
	}
}

// snippet flattens content to one line of at most n runes.
func snippet(content string, n int) string {
	flat := strings.Join(strings.Fields(content), " ")
	if r := []rune(flat); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return flat
}
