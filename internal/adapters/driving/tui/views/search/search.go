// Package search is the TUI view for raw hybrid retrieval: type a query,
// browse the ranked fragments, open the document behind one.
package search

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
)

// ErrNoSearchService is reported when a search is submitted without a service.
var ErrNoSearchService = errors.New("search service is required")

const maxResults = 20

type mode int

const (
	typing mode = iota
	browsing
)

// scope restricts searches to one document.
type scope struct {
	documentID string
	filename   string
}

type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.Prompt
	list      *list.FragmentList
	statusbar *status.Bar

	service driving.SearchService
	ctx     context.Context

	mode  mode
	scope *scope
	err   error

	width, height int
	ready         bool
}

func NewView(s *styles.Styles, km *keymap.KeyMap, service driving.SearchService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:    s,
		keymap:    km,
		input:     input.NewPrompt(s, "Search", "e.g. tabique de ladrillo hueco doble"),
		list:      list.NewFragmentList(s),
		statusbar: status.NewBar(s, km),
		service:   service,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
}

func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
		}
		if v.mode == typing {
			return v, v.updateTyping(msg)
		}
		return v, v.updateBrowsing(msg)
	case messages.SearchCompleted:
		v.showResults(msg.Results, msg.Err)
		return v, nil
	case messages.ErrorOccurred:
		v.fail(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) updateTyping(msg tea.KeyMsg) tea.Cmd {
	if !keymap.Matches(msg.String(), v.keymap.Submit) {
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return cmd
	}
	if v.input.Value() == "" {
		return nil
	}
	v.mode = browsing
	v.input.Blur()
	return v.run()
}

func (v *View) updateBrowsing(msg tea.KeyMsg) tea.Cmd {
	k := msg.String()
	switch {
	case keymap.Matches(k, v.keymap.Select):
		return v.openSelected()
	case keymap.Matches(k, v.keymap.Up):
		v.list.MoveUp()
	case keymap.Matches(k, v.keymap.Down):
		v.list.MoveDown()
	case keymap.Matches(k, v.keymap.Narrow):
		return v.toggleScope()
	case keymap.Matches(k, v.keymap.NewSearch):
		v.mode = typing
		v.input.SetValue("")
		return v.input.Focus()
	}
	return nil
}

// toggleScope reruns the query inside the selected fragment's document, or
// across the whole index when already narrowed.
func (v *View) toggleScope() tea.Cmd {
	if v.scope != nil {
		v.scope = nil
		return v.run()
	}
	sel := v.list.SelectedResult()
	if sel == nil || sel.DocumentID == "" {
		return nil
	}
	v.scope = &scope{documentID: sel.DocumentID, filename: sel.Filename}
	return v.run()
}

func (v *View) run() tea.Cmd {
	v.err = nil
	v.statusbar.SetState(status.StateSearching)

	ctx, svc, query, sc := v.ctx, v.service, v.input.Value(), v.scope
	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}
		var (
			results []domain.RankedChunk
			err     error
		)
		if sc != nil {
			results, err = svc.SearchWithinDocument(ctx, sc.documentID, query, maxResults)
		} else {
			results, err = svc.Search(ctx, domain.SearchRequest{Query: query, MaxResults: maxResults})
		}
		return messages.SearchCompleted{Results: results, Err: err}
	}
}

func (v *View) openSelected() tea.Cmd {
	sel := v.list.SelectedResult()
	if sel == nil || sel.DocumentID == "" {
		return nil
	}
	doc := domain.Document{ID: sel.DocumentID, Filename: sel.Filename}
	return func() tea.Msg { return messages.DocumentSelected{Document: doc} }
}

func (v *View) showResults(results []domain.RankedChunk, err error) {
	if err != nil {
		v.fail(err)
		return
	}
	v.err = nil
	v.list.SetResults(results)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetResultCount(len(results))
	v.statusbar.SetMessage("")
	if v.scope != nil {
		v.statusbar.SetMessage("in " + v.scope.filename)
	}
	v.mode = browsing
	v.input.Blur()
}

func (v *View) fail(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	title := v.styles.Title.Render("obra")
	if v.scope != nil {
		title += " " + v.styles.Subtitle.Render("within "+v.scope.filename)
	}
	parts := []string{title, "", v.input.View(), ""}
	if v.err != nil {
		parts = append(parts, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	parts = append(parts, v.list.View(), "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.ready = true
	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-10)
	v.statusbar.SetWidth(width)
}

// Reset clears the query, results and document scope and focuses the input.
func (v *View) Reset() {
	v.mode = typing
	v.scope = nil
	v.err = nil
	v.input.SetValue("")
	v.input.Focus()
	v.list.SetResults(nil)
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("")
}

func (v *View) Ready() bool { return v.ready }
func (v *View) Query() string { return v.input.Value() }
func (v *View) SetQuery(query string)                { v.input.SetValue(query) }
func (v *View) Results() []domain.RankedChunk { return v.list.Results() }
func (v *View) SelectedResult() *domain.RankedChunk { return v.list.SelectedResult() }
func (v *View) Err() error { return v.err }
func (v *View) InputFocused() bool { return v.mode == typing }

// ScopedTo returns the document id searches are restricted to, or "".
func (v *View) ScopedTo() string {
	if v.scope == nil {
		return ""
	}
	return v.scope.documentID
}
