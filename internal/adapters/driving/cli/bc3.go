package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/obra/internal/core/domain"
)

var (
	bc3Project   string
	bc3PerQuery  int
	bc3Enrich    bool
	bc3Output    string
	bc3FromFile  string
	bc3Overwrite bool
	bc3Filters   filterFlags
)

var bc3Cmd = &cobra.Command{
	Use:   "bc3 [query...]",
	Short: "Generate a BC3 budget from indexed items",
	Long: `Searches the index once per query, extracts the line items found
(code, summary, unit, price) and writes them as a FIEBDC-3 budget.

Queries are given as arguments or read one per line from --from-file
("-" reads standard input). With --enrich, items without a price get a
market estimate from the language model.

Examples:
  obra bc3 "tabique ladrillo" "solado gres" --project "Reforma local"
  obra bc3 --from-file partidas.txt --enrich -o reforma.bc3`,
	RunE: runBC3,
}

func init() {
	bc3Cmd.Flags().StringVarP(&bc3Project, "project", "p", "", "project name for the root concept")
	bc3Cmd.Flags().IntVarP(&bc3PerQuery, "per-query", "n", 0, "items taken per query, 1-10 (default 3)")
	bc3Cmd.Flags().BoolVar(&bc3Enrich, "enrich", false, "estimate missing prices with the language model")
	bc3Cmd.Flags().StringVarP(&bc3Output, "output", "o", "", "output file (default derived from the project name)")
	bc3Cmd.Flags().StringVarP(&bc3FromFile, "from-file", "f", "", "read queries from a file, one per line")
	bc3Cmd.Flags().BoolVar(&bc3Overwrite, "force", false, "overwrite an existing output file")
	bc3Filters.register(bc3Cmd.Flags())
	rootCmd.AddCommand(bc3Cmd)
}

func runBC3(cmd *cobra.Command, args []string) error {
	if budgetService == nil {
		return errors.New("budget service not configured")
	}

	queries := args
	if bc3FromFile != "" {
		fromFile, err := readQueries(cmd, bc3FromFile)
		if err != nil {
			return err
		}
		queries = append(queries, fromFile...)
	}
	if len(queries) == 0 {
		return errors.New("no queries given: pass them as arguments or with --from-file")
	}

	result, err := budgetService.GenerateBC3(cmd.Context(), domain.BC3Request{
		Queries:            queries,
		MaxResultsPerQuery: bc3PerQuery,
		ProjectName:        bc3Project,
		Filters:            bc3Filters.filters(cmd),
		EnrichPrices:       bc3Enrich,
	})
	if err != nil {
		return fmt.Errorf("bc3 generation failed: %w", userError(err))
	}

	path := bc3Output
	if path == "" {
		path = result.Filename
	}
	if err := writeOutput(path, result.Content, bc3Overwrite); err != nil {
		return err
	}

	cmd.Printf("Wrote %s: %d items from %d queries", path, len(result.Items), result.QueriesProcessed)
	if result.EstimatedPrices > 0 {
		cmd.Printf(" (%d estimated prices)", result.EstimatedPrices)
	}
	cmd.Println()
	for _, item := range result.Items {
		price := "sin precio"
		if item.HasPrice() {
			price = fmt.Sprintf("%.2f", item.Price)
			if item.PriceEstimated {
				price += " (est.)"
			}
		}
		cmd.Printf("  %-20s %-6s %12s  %s\n", item.Code, item.Unit, price, item.Summary)
	}
	return nil
}

// readQueries reads non-empty lines from path, or stdin when path is "-".
func readQueries(cmd *cobra.Command, path string) ([]string, error) {
	var scanner *bufio.Scanner
	if path == "-" {
		scanner = bufio.NewScanner(cmd.InOrStdin())
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open queries: %w", err)
		}
		defer f.Close()
		scanner = bufio.NewScanner(f)
	}

	var queries []string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			queries = append(queries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	return queries, nil
}

// writeOutput writes data to path, refusing to replace a file unless overwrite is set.
func writeOutput(path string, data []byte, overwrite bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
		return fmt.Errorf("write output: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}
