// Package cli provides the obra command line interface.
//
// Commands talk to the core only through driving ports. The ports are
// wired by bootstrap before any command that needs them runs; tests replace
// bootstrap and assign mock services directly.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/obra/internal/core/ports/driving"
	"github.com/custodia-labs/obra/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// Global flags.
var (
	verbose   bool
	ephemeral bool
	homeDir   string
)

// Driving ports used by the commands.
var (
	settingsService driving.SettingsService
	documentService driving.DocumentService
	searchService   driving.SearchService
	ragService      driving.RAGService
	budgetService   driving.BudgetService
)

// skipBootstrap marks commands that run without any service.
const skipBootstrap = "skip-bootstrap"

// bootstrap wires the services. Nil leaves the current services untouched.
var bootstrap func(cmd *cobra.Command) (cleanup func(), err error) = wireServices

// cleanups run after the command finishes, in reverse order.
var cleanups []func()

var rootCmd = &cobra.Command{
	Use:   "obra",
	Short: "Construction cost estimation over your own price documents",
	Long: `obra indexes price bases, budgets and BC3 (FIEBDC-3) files, answers cost
questions grounded on them and generates BC3 budgets from retrieved items.

Hybrid retrieval fuses semantic (vector) and keyword (full-text) search.
When no indexed evidence is relevant, answers fall back to a clearly
labelled market estimate.`,
	SilenceUsage:      true,
	PersistentPreRunE: runBootstrap,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show retrieval and generation details")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep the index in memory for this run only")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "configuration and data directory (default $OBRA_HOME or ~/.obra)")
}

// Services aggregates the driving ports for SetServices.
type Services struct {
	Settings driving.SettingsService
	Document driving.DocumentService
	Search   driving.SearchService
	RAG      driving.RAGService
	Budget   driving.BudgetService
}

// SetServices replaces the services used by the commands.
func SetServices(s Services) {
	settingsService = s.Settings
	documentService = s.Document
	searchService = s.Search
	ragService = s.RAG
	budgetService = s.Budget
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command and releases wired resources.
func Execute() error {
	defer runCleanups()
	return rootCmd.Execute()
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if bootstrap == nil || cmd.Annotations[skipBootstrap] == "true" {
		return nil
	}

	cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if cleanup != nil {
		cleanups = append(cleanups, cleanup)
	}
	return nil
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}
