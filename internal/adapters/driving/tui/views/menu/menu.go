// Package menu is the TUI start screen.
package menu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/styles"
)

// Item is one entry. Items without a view quit the program.
type Item struct {
	Label       string
	Description string
	View        messages.ViewType
	Quit        bool
}

var defaultItems = []Item{
	{Label: "Ask", Description: "cost questions answered from your documents", View: messages.ViewChat},
	{Label: "Search", Description: "find price fragments", View: messages.ViewSearch},
	{Label: "Documents", Description: "indexed price bases and budgets", View: messages.ViewDocuments},
	{Label: "Settings", Description: "providers and retrieval", View: messages.ViewSettings},
	{Label: "Help", View: messages.ViewHelp},
	{Label: "Quit", Quit: true},
}

type View struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	items  []Item

	selected      int
	width, height int
	ready         bool
}

func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles: s,
		keymap: keymap.DefaultKeyMap(),
		items:  defaultItems,
		width:  80,
		height: 24,
	}
}

func (v *View) Init() tea.Cmd { return nil }

// Update moves the cursor and opens items. Digits open the numbered item directly.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		k := msg.String()
		switch {
		case keymap.Matches(k, v.keymap.Up):
			v.selected = max(v.selected-1, 0)
		case keymap.Matches(k, v.keymap.Down):
			v.selected = min(v.selected+1, len(v.items)-1)
		case keymap.Matches(k, v.keymap.Select):
			return v, v.open(v.selected)
		case keymap.Matches(k, v.keymap.Quit):
			return v, tea.Quit
		case len(k) == 1 && k[0] >= '1' && int(k[0]-'0') <= len(v.items):
			v.selected = int(k[0] - '1')
			return v, v.open(v.selected)
		}
	}
	return v, nil
}

func (v *View) open(i int) tea.Cmd {
	item := v.items[i]
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg { return messages.ViewChanged{View: item.View} }
}

func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("obra") + "\n\n")
	b.WriteString(v.styles.Muted.Render("Construction cost estimation") + "\n\n")

	for i, item := range v.items {
		cursor, label := "  ", v.styles.Normal.Render(item.Label)
		if i == v.selected {
			cursor, label = "> ", v.styles.Subtitle.Render(item.Label)
		}
		fmt.Fprintf(&b, "%s%d %s", cursor, i+1, label)
		if item.Description != "" {
			b.WriteString(v.styles.Muted.Render("  " + item.Description))
		}
		b.WriteByte('\n')
	}

	b.WriteString("\n" + v.styles.Help.Render("j/k move · enter or 1-6 open · q quit"))
	return b.String()
}

func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.ready = true
}

// Selected is the cursor position.
func (v *View) Selected() int { return v.selected }
