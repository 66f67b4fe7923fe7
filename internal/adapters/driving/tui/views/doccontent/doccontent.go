// Package doccontent shows the extracted text of one document, with find.
package doccontent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
)

// ErrNoDocumentService is reported when the view has no document port.
var ErrNoDocumentService = errors.New("document service not available")

const chrome = 6

type View struct {
	styles   *styles.Styles
	service  driving.DocumentService
	ctx      context.Context
	viewport viewport.Model
	find     *input.Prompt

	document *domain.Document
	content  string
	lines    []string // content as wrapped on screen
	loading  bool
	err      error

	finding bool
	term    string
	matches []int // line numbers in lines
	current int

	width, height int
	ready         bool
}

func NewView(s *styles.Styles, service driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:   s,
		service:  service,
		ctx:      context.Background(),
		viewport: viewport.New(80, 24-chrome),
		find:     input.NewPrompt(s, "Find", "code or words"),
		width:    80,
		height:   24,
	}
}

func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

func (v *View) Init() tea.Cmd { return nil }

// SetDocument clears the view and starts loading doc's content.
func (v *View) SetDocument(doc *domain.Document) tea.Cmd {
	v.document = doc
	v.content, v.lines, v.err = "", nil, nil
	v.loading = true
	v.clearFind()
	v.viewport.SetContent("")
	v.viewport.GotoTop()

	ctx, svc := v.ctx, v.service
	return func() tea.Msg {
		if doc == nil || svc == nil {
			return messages.DocumentContentLoaded{Err: ErrNoDocumentService}
		}
		content, err := svc.GetContent(ctx, doc.ID)
		return messages.DocumentContentLoaded{DocumentID: doc.ID, Content: content, Err: err}
	}
}

func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		if v.finding {
			return v, v.updateFind(msg)
		}
		return v, v.updateKeys(msg)
	case messages.DocumentContentLoaded:
		// A slow load for a previously opened document is ignored.
		if v.document != nil && msg.DocumentID != "" && msg.DocumentID != v.document.ID {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.content = msg.Content
			v.refresh()
		}
	case messages.ErrorOccurred:
		v.err = msg.Err
	}
	return v, nil
}

func (v *View) updateKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		if v.term != "" {
			v.clearFind()
			return nil
		}
		return func() tea.Msg { return messages.ViewChanged{View: messages.ViewDocuments} }
	case "home", "g":
		v.viewport.GotoTop()
	case "end", "G":
		v.viewport.GotoBottom()
	case "/":
		v.finding = true
		v.find.SetValue("")
		return v.find.Focus()
	case "n":
		v.jump(1)
	case "N":
		v.jump(-1)
	default:
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (v *View) updateFind(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		v.finding = false
		v.find.Blur()
		return nil
	case tea.KeyEnter:
		v.finding = false
		v.find.Blur()
		v.search(v.find.Value())
		return nil
	}
	var cmd tea.Cmd
	v.find, cmd = v.find.Update(msg)
	return cmd
}

// search records every wrapped line containing term, ignoring case, and
// scrolls to the first one.
func (v *View) search(term string) {
	v.term = strings.TrimSpace(term)
	v.matches, v.current = nil, 0
	if v.term == "" {
		return
	}
	needle := strings.ToLower(v.term)
	for i, line := range v.lines {
		if strings.Contains(strings.ToLower(line), needle) {
			v.matches = append(v.matches, i)
		}
	}
	if len(v.matches) > 0 {
		v.viewport.SetYOffset(v.matches[0])
	}
}

// jump moves to the next or previous match, wrapping around.
func (v *View) jump(dir int) {
	if len(v.matches) == 0 {
		return
	}
	v.current = (v.current + dir + len(v.matches)) % len(v.matches)
	v.viewport.SetYOffset(v.matches[v.current])
}

func (v *View) clearFind() {
	v.finding = false
	v.term, v.matches, v.current = "", nil, 0
	v.find.Blur()
}

// refresh rewraps the content to the width and reruns any active find.
func (v *View) refresh() {
	wrapped := lipgloss.NewStyle().Width(max(v.width-4, 20)).Render(v.content)
	v.lines = strings.Split(wrapped, "\n")
	v.viewport.SetContent(wrapped)
	if v.term != "" {
		v.search(v.term)
	}
}

func (v *View) View() string {
	title := "Document Content"
	if v.document != nil {
		title = v.document.Filename
		if title == "" {
			title = v.document.ID
		}
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render(title) + "\n")
	b.WriteString(strings.Repeat("─", min(max(v.width-4, 1), 60)) + "\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading content..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case strings.TrimSpace(v.content) == "":
		b.WriteString(v.styles.Muted.Render("(No content)"))
	default:
		b.WriteString(v.viewport.View() + "\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%3.0f%%]", v.viewport.ScrollPercent()*100)))
		if v.term != "" {
			b.WriteString("  " + v.findStatus())
		}
	}

	b.WriteString("\n\n")
	if v.finding {
		b.WriteString(v.find.View())
	} else {
		b.WriteString(v.styles.Help.Render("[↑/↓/PgUp/PgDn] scroll  [g/G] top/bottom  [/] find  [n/N] next/prev  [esc] back"))
	}
	return b.String()
}

func (v *View) findStatus() string {
	if len(v.matches) == 0 {
		return v.styles.Warning.Render(fmt.Sprintf("%q not found", v.term))
	}
	return v.styles.Subtitle.Render(fmt.Sprintf("%q %d/%d", v.term, v.current+1, len(v.matches)))
}

func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.ready = true
	v.viewport.Width = width
	v.viewport.Height = max(height-chrome, 1)
	v.find.SetWidth(width)
	v.refresh()
}

func (v *View) Document() *domain.Document { return v.document }

func (v *View) Content() string { return v.content }

func (v *View) Err() error { return v.err }

// Matches returns the number of lines matching the active find.
func (v *View) Matches() int { return len(v.matches) }
