// Package styles holds the colour palette and lipgloss styles of the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the colour palette. The defaults borrow from building
// materials: terracotta, steel, lime plaster, concrete.
type Theme struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color

	// Warning also marks market estimates.
	Warning lipgloss.Color

	Error  lipgloss.Color
	Border lipgloss.Color

	// Bar is the status bar background and the text colour on badges.
	Bar lipgloss.Color
}

// DefaultTheme returns the default palette.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    "#E07A3F",
		Secondary:  "#5FA8D3",
		Foreground: "#E6E1DA",
		Muted:      "#7D7A75",
		Success:    "#8FBF6A",
		Warning:    "#F2C14E",
		Error:      "#E5534B",
		Border:     "#4A4743",
		Bar:        "#1F1D1B",
	}
}

// Styles are the lipgloss styles shared by every view.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Help     lipgloss.Style

	// Selected highlights the row under the cursor.
	Selected lipgloss.Style

	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style

	InputField lipgloss.Style
	StatusBar  lipgloss.Style

	// Question renders the user's turns in the chat.
	Question lipgloss.Style

	// EstimateBadge marks answers not backed by indexed documents.
	EstimateBadge lipgloss.Style

	// Score renders relevance scores.
	Score lipgloss.Style
}

// NewStyles builds the styles for theme. Nil uses DefaultTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}

	return &Styles{
		theme: theme,

		Title:    fg(theme.Primary).Bold(true),
		Subtitle: fg(theme.Secondary).Bold(true),
		Normal:   fg(theme.Foreground),
		Muted:    fg(theme.Muted),
		Help:     fg(theme.Muted).Italic(true),
		Selected: fg(theme.Bar).Background(theme.Primary).Bold(true),

		Error:   fg(theme.Error),
		Success: fg(theme.Success),
		Warning: fg(theme.Warning),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		StatusBar: fg(theme.Muted).Background(theme.Bar).Padding(0, 1),

		Question:      fg(theme.Secondary).Bold(true),
		EstimateBadge: fg(theme.Bar).Background(theme.Warning).Bold(true).Padding(0, 1),
		Score:         fg(theme.Success),
	}
}

// DefaultStyles returns styles for the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}
