package cli

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
)

// startViews are the views the TUI can open on.
var startViews = map[string]messages.ViewType{
	"menu":      messages.ViewMenu,
	"chat":      messages.ViewChat,
	"search":    messages.ViewSearch,
	"documents": messages.ViewDocuments,
	"settings":  messages.ViewSettings,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for obra.

Ask cost questions in a conversation, search indexed price fragments,
browse and remove documents, and change provider settings.

Controls:
  ↑/k, ↓/j  Navigate
  Enter     Send, search or select
  Tab       Show answer sources
  Ctrl+N    New conversation
  f         Search within the selected document
  /         Find inside a document
  Esc       Back
  q         Quit (from the menu)`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().String("start", "menu", "view to open first: menu, chat, search, documents or settings")
	rootCmd.AddCommand(tuiCmd)
}

func tuiPorts() *tui.Ports {
	return &tui.Ports{
		Search:   searchService,
		RAG:      ragService,
		Document: documentService,
		Settings: settingsService,
	}
}

func startView(name string) (messages.ViewType, error) {
	view, ok := startViews[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown view %q (menu, chat, search, documents, settings)", name)
	}
	return view, nil
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "obra tui crashed: %v\n%s\n", r, debug.Stack())
			err = fmt.Errorf("tui crashed: %v", r)
		}
	}()

	name, _ := cmd.Flags().GetString("start")
	view, err := startView(name)
	if err != nil {
		return err
	}

	app, err := tui.NewApp(tuiPorts())
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	if err := app.WithContext(cmd.Context()).StartIn(view).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
