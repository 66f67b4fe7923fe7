// Package status provides the one-line status bar shown under each view.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/styles"
)

// State is what the bar reports on the left.
type State string

// Bar states.
const (
	StateReady     State = "ready"
	StateSearching State = "searching"
	StateThinking  State = "thinking"
	StateResults   State = "results"
	StateError     State = "error"
)

// Bar shows the view state on the left and key hints on the right.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	count   int
	hints   []key.Binding
	width   int
}

// NewBar creates a status bar in the ready state.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, state: StateReady, width: 80}
}

// View renders the bar at its width. The state label is cut before the hints.
func (s *Bar) View() string {
	inner := max(s.width-s.styles.StatusBar.GetHorizontalFrameSize(), 1)
	right := s.hintText()
	left := s.label()

	room := inner - lipgloss.Width(right) - 1
	if room < 1 {
		right = ""
		room = inner
	}
	if lipgloss.Width(left) > room {
		left = truncate(left, room)
	}

	gap := max(inner-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return s.styles.StatusBar.Width(s.width).Render(
		s.leftStyle().Render(left) + strings.Repeat(" ", gap) + s.styles.Muted.Render(right),
	)
}

func (s *Bar) label() string {
	switch s.state {
	case StateSearching:
		return "Searching the index..."
	case StateThinking:
		if s.message != "" {
			return s.message
		}
		return "Waiting for the answer..."
	case StateError:
		if s.message != "" {
			return "Error: " + s.message
		}
		return "Error"
	case StateResults:
		if s.count == 1 {
			return "1 fragment"
		}
		return fmt.Sprintf("%d fragments", s.count)
	case StateReady:
	}
	if s.message != "" {
		return s.message
	}
	return "Ready"
}

func (s *Bar) leftStyle() lipgloss.Style {
	switch s.state {
	case StateError:
		return s.styles.Error
	case StateResults:
		return s.styles.Normal
	case StateReady:
		if s.message != "" {
			return s.styles.Normal
		}
	case StateSearching, StateThinking:
	}
	return s.styles.Muted
}

func (s *Bar) hintText() string {
	bindings := s.hints
	if len(bindings) == 0 {
		bindings = s.keymap.ShortHelp()
		if s.state == StateResults && s.count > 0 {
			bindings = s.keymap.ResultsHelp()
		}
	}

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

// truncate cuts s to n cells, ending with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > n {
		r = r[:len(r)-1]
	}
	if len(r) == 0 {
		return ""
	}
	return string(r) + "…"
}

// SetState sets the state.
func (s *Bar) SetState(state State) { s.state = state }

// State returns the state.
func (s *Bar) State() State { return s.state }

// SetMessage sets the text shown for the ready, thinking and error states.
func (s *Bar) SetMessage(message string) { s.message = message }

// Message returns the message.
func (s *Bar) Message() string { return s.message }

// SetResultCount sets the number of fragments shown in the results state.
func (s *Bar) SetResultCount(count int) { s.count = count }

// ResultCount returns the fragment count.
func (s *Bar) ResultCount() int { return s.count }

// SetHints replaces the key hints. Nil restores the defaults.
func (s *Bar) SetHints(bindings []key.Binding) { s.hints = bindings }

// SetWidth sets the width in cells.
func (s *Bar) SetWidth(width int) { s.width = width }

// Width returns the width.
func (s *Bar) Width() int { return s.width }

// Clear returns to the ready state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.count = 0
}
