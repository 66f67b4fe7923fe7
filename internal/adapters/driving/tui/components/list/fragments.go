// Package list provides the retrieved fragment list shown by the search view.
package list

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/obra/internal/core/domain"
)

// linesPerFragment is the height of one rendered fragment.
const linesPerFragment = 3

// gaugeCells is the width of the score gauge.
const gaugeCells = 10

// FragmentList is a navigable list of ranked fragments.
type FragmentList struct {
	styles    *styles.Styles
	fragments []domain.RankedChunk
	cursor    int
	offset    int
	width     int
	height    int
}

// NewFragmentList creates an empty list.
func NewFragmentList(s *styles.Styles) *FragmentList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &FragmentList{styles: s, width: 80, height: 12}
}

// SetResults replaces the fragments and selects the first.
func (l *FragmentList) SetResults(fragments []domain.RankedChunk) {
	l.fragments = fragments
	l.cursor = 0
	l.offset = 0
}

// Results returns the fragments.
func (l *FragmentList) Results() []domain.RankedChunk {
	return l.fragments
}

// SelectedResult returns the fragment under the cursor, or nil.
func (l *FragmentList) SelectedResult() *domain.RankedChunk {
	if l.cursor < 0 || l.cursor >= len(l.fragments) {
		return nil
	}
	return &l.fragments[l.cursor]
}

// Selected returns the cursor index.
func (l *FragmentList) Selected() int {
	return l.cursor
}

// MoveUp moves the cursor up one fragment.
func (l *FragmentList) MoveUp() {
	if l.cursor > 0 {
		l.cursor--
		l.scroll()
	}
}

// MoveDown moves the cursor down one fragment.
func (l *FragmentList) MoveDown() {
	if l.cursor < len(l.fragments)-1 {
		l.cursor++
		l.scroll()
	}
}

// visible is the number of fragments that fit under the header.
func (l *FragmentList) visible() int {
	return max((l.height-2)/linesPerFragment, 1)
}

// scroll keeps the cursor inside the window.
func (l *FragmentList) scroll() {
	n := l.visible()
	switch {
	case l.cursor < l.offset:
		l.offset = l.cursor
	case l.cursor >= l.offset+n:
		l.offset = l.cursor - n + 1
	}
}

// SetDimensions sets the size in cells.
func (l *FragmentList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
	l.scroll()
}

// Len returns the number of fragments.
func (l *FragmentList) Len() int {
	return len(l.fragments)
}

// View renders the window of fragments around the cursor.
func (l *FragmentList) View() string {
	if len(l.fragments) == 0 {
		return l.styles.Muted.Render("No results")
	}

	end := min(l.offset+l.visible(), len(l.fragments))
	header := "1 fragment"
	if len(l.fragments) != 1 {
		header = fmt.Sprintf("%d fragments", len(l.fragments))
	}
	if l.offset > 0 || end < len(l.fragments) {
		header += fmt.Sprintf(" (%d-%d)", l.offset+1, end)
	}

	var b strings.Builder
	b.WriteString(l.styles.Subtitle.Render(header))
	b.WriteString("\n")
	for i := l.offset; i < end; i++ {
		b.WriteString("\n")
		b.WriteString(l.renderFragment(i))
	}
	return b.String()
}

func (l *FragmentList) renderFragment(i int) string {
	f := &l.fragments[i]

	title := fmt.Sprintf("[%d] %s", i+1, Provenance(f))
	if code, ok := f.Metadata["bc3_code"].(string); ok && code != "" {
		title += "  " + code
	}
	score := fmt.Sprintf("%.2f %s", f.Score, Gauge(f.Score))
	title = truncate(title, max(l.width-len([]rune(score))-4, 10))
	pad := max(l.width-len([]rune(title))-len([]rune(score))-4, 1)

	var line string
	if i == l.cursor {
		line = l.styles.Selected.Render("> " + title + strings.Repeat(" ", pad) + score)
	} else {
		line = "  " + l.styles.Normal.Render(title) + strings.Repeat(" ", pad) + l.styles.Score.Render(score)
	}

	preview := truncate(strings.Join(strings.Fields(f.Content), " "), max(l.width-6, 20))
	return line + "\n" + l.styles.Muted.Render("    "+preview)
}

// Provenance names where a fragment came from: file, page and row.
func Provenance(c *domain.RankedChunk) string {
	name := c.Filename
	if name == "" {
		name = "(unknown file)"
	}
	if c.Page != nil {
		name += fmt.Sprintf(", page %d", *c.Page)
	}
	if c.Row != nil {
		name += fmt.Sprintf(", row %d", *c.Row)
	}
	return name
}

// Gauge draws a normalised score as a bar of gaugeCells cells.
func Gauge(score float64) string {
	filled := int(score*gaugeCells + 0.5)
	filled = min(max(filled, 0), gaugeCells)
	return strings.Repeat("▰", filled) + strings.Repeat("▱", gaugeCells-filled)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
