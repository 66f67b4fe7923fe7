// Package documents lists the indexed documents and runs per-document actions.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
)

// ErrNoDocumentService is reported when the view has no document port.
var ErrNoDocumentService = errors.New("document service not available")

// ActionOption is an entry of the per-document action menu.
type ActionOption int

const (
	ActionShowContent ActionOption = iota
	ActionShowDetails
	ActionDelete
	ActionCancel
)

var actionLabels = [...]string{
	ActionShowContent: "Show Content",
	ActionShowDetails: "Show Details",
	ActionDelete:      "Remove from index",
	ActionCancel:      "Cancel",
}

// overlay is what covers the list, if anything.
type overlay int

const (
	noOverlay overlay = iota
	actionMenu
	confirmDelete
)

// chrome is the lines used by title, notice, pager and help.
const chrome = 8

type View struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	service driving.DocumentService
	ctx     context.Context

	documents []domain.Document
	selected  int
	offset    int

	overlay overlay
	action  ActionOption

	loading bool
	err     error
	notice  string

	width, height int
	ready         bool
}

func NewView(s *styles.Styles, service driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:  s,
		keymap:  keymap.DefaultKeyMap(),
		service: service,
		ctx:     context.Background(),
	}
}

func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init resets the view and loads the list.
func (v *View) Init() tea.Cmd {
	v.selected, v.offset = 0, 0
	v.overlay = noOverlay
	v.err, v.notice = nil, ""
	return v.reload()
}

func (v *View) reload() tea.Cmd {
	v.loading = true
	ctx, svc := v.ctx, v.service
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentsLoaded{Err: ErrNoDocumentService}
		}
		docs, err := svc.List(ctx)
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

func (v *View) remove(doc domain.Document) tea.Cmd {
	ctx, svc := v.ctx, v.service
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentDeleted{DocumentID: doc.ID, Err: ErrNoDocumentService}
		}
		return messages.DocumentDeleted{DocumentID: doc.ID, Err: svc.Delete(ctx, doc.ID)}
	}
}

func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		switch v.overlay {
		case actionMenu:
			return v, v.updateMenu(msg)
		case confirmDelete:
			return v, v.updateConfirm(msg)
		}
		return v, v.updateList(msg)
	case messages.DocumentsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.documents = msg.Documents
			v.selected = min(v.selected, max(len(v.documents)-1, 0))
			v.scroll()
		}
	case messages.DocumentDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.notice = "Removed " + v.nameOf(msg.DocumentID)
		return v, v.reload()
	case messages.ErrorOccurred:
		v.err = msg.Err
	}
	return v, nil
}

func (v *View) updateList(msg tea.KeyMsg) tea.Cmd {
	k := msg.String()
	doc := v.SelectedDocument()
	switch {
	case keymap.Matches(k, v.keymap.Back):
		return func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case keymap.Matches(k, v.keymap.Up):
		v.move(-1)
	case keymap.Matches(k, v.keymap.Down):
		v.move(1)
	case k == "r":
		return v.reload()
	case doc == nil:
	case keymap.Matches(k, v.keymap.Select):
		v.overlay, v.action = actionMenu, ActionShowContent
	case keymap.Matches(k, v.keymap.Details):
		return details(*doc)
	case keymap.Matches(k, v.keymap.Delete):
		v.overlay = confirmDelete
	}
	return nil
}

func (v *View) updateMenu(msg tea.KeyMsg) tea.Cmd {
	k := msg.String()
	switch {
	case keymap.Matches(k, v.keymap.Back):
		v.overlay = noOverlay
	case keymap.Matches(k, v.keymap.Up):
		v.action = max(v.action-1, ActionShowContent)
	case keymap.Matches(k, v.keymap.Down):
		v.action = min(v.action+1, ActionCancel)
	case keymap.Matches(k, v.keymap.Select):
		v.overlay = noOverlay
		doc := v.SelectedDocument()
		if doc == nil {
			return nil
		}
		switch v.action {
		case ActionShowContent:
			d := *doc
			return func() tea.Msg { return messages.DocumentSelected{Document: d} }
		case ActionShowDetails:
			return details(*doc)
		case ActionDelete:
			v.overlay = confirmDelete
		case ActionCancel:
		}
	}
	return nil
}

// updateConfirm removes the document on "y" and cancels on anything else.
func (v *View) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	v.overlay = noOverlay
	doc := v.SelectedDocument()
	if doc == nil || (msg.String() != "y" && msg.String() != "Y") {
		return nil
	}
	return v.remove(*doc)
}

func details(doc domain.Document) tea.Cmd {
	return func() tea.Msg { return messages.DocumentDetailsRequested{Document: doc} }
}

func (v *View) nameOf(id string) string {
	for i := range v.documents {
		if v.documents[i].ID == id && v.documents[i].Filename != "" {
			return v.documents[i].Filename
		}
	}
	return id
}

func (v *View) move(delta int) {
	if len(v.documents) == 0 {
		return
	}
	v.selected = min(max(v.selected+delta, 0), len(v.documents)-1)
	v.scroll()
}

func (v *View) rows() int {
	return max(v.height-chrome, 1)
}

// scroll keeps the selection inside the visible window.
func (v *View) scroll() {
	rows := v.rows()
	switch {
	case v.selected < v.offset:
		v.offset = v.selected
	case v.selected >= v.offset+rows:
		v.offset = v.selected - rows + 1
	}
}

func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents (%d)", len(v.documents))) + "\n\n")
	if v.notice != "" {
		b.WriteString(v.styles.Success.Render(v.notice) + "\n\n")
	}

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.documents) == 0:
		b.WriteString(v.styles.Muted.Render("No documents indexed. Add some with 'obra ingest <path>'."))
	case v.overlay == actionMenu:
		return b.String() + v.viewMenu()
	case v.overlay == confirmDelete:
		return b.String() + v.viewConfirm()
	default:
		v.viewList(&b)
	}

	b.WriteString("\n\n" + v.styles.Help.Render("[↑/↓] navigate  [enter] actions  [i] details  [d] remove  [r] reload  [esc] back"))
	return b.String()
}

func (v *View) viewList(b *strings.Builder) {
	rows := v.rows()
	end := min(v.offset+rows, len(v.documents))
	for i := v.offset; i < end; i++ {
		b.WriteString(v.row(i) + "\n")
	}
	if len(v.documents) > rows {
		fmt.Fprintf(b, "\n%s", v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", v.offset+1, end, len(v.documents))))
	}
}

// row renders name, status, chunk count and the document type when known.
func (v *View) row(i int) string {
	doc := &v.documents[i]
	name := doc.Filename
	if name == "" {
		name = doc.ID
	}
	width := max(v.width/2-4, 10)
	if r := []rune(name); len(r) > width {
		name = string(r[:width-3]) + "..."
	}

	info := fmt.Sprintf("%s, %d chunks", doc.Status, doc.ChunkCount)
	if doc.Metadata.DocumentType != "" {
		info += ", " + doc.Metadata.DocumentType
	}

	if i == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("> %-*s  %s", width, name, info))
	}
	infoStyle := v.styles.Muted
	if doc.Status == domain.StatusFailed {
		infoStyle = v.styles.Error
	}
	return v.styles.Normal.Render(fmt.Sprintf("  %-*s  ", width, name)) + infoStyle.Render(info)
}

func (v *View) viewMenu() string {
	var b strings.Builder
	if doc := v.SelectedDocument(); doc != nil {
		b.WriteString(v.styles.Subtitle.Render("Actions for: "+doc.Filename) + "\n\n")
	}
	for i, label := range actionLabels {
		if ActionOption(i) == v.action {
			b.WriteString(v.styles.Selected.Render("> "+label) + "\n")
		} else {
			b.WriteString(v.styles.Normal.Render("  "+label) + "\n")
		}
	}
	b.WriteString("\n" + v.styles.Help.Render("[↑/↓] navigate  [enter] select  [esc] cancel"))
	return b.String()
}

func (v *View) viewConfirm() string {
	doc := v.SelectedDocument()
	if doc == nil {
		return ""
	}
	return v.styles.Warning.Render(fmt.Sprintf("Remove %s and its %d chunks from the index?", doc.Filename, doc.ChunkCount)) +
		"\n\n" + v.styles.Help.Render("[y] remove  [any other key] cancel")
}

func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.ready = true
}

func (v *View) Documents() []domain.Document { return v.documents }

func (v *View) SelectedIndex() int { return v.selected }

func (v *View) SelectedDocument() *domain.Document {
	if v.selected >= 0 && v.selected < len(v.documents) {
		return &v.documents[v.selected]
	}
	return nil
}

// IsShowingMenu reports whether the action menu is open.
func (v *View) IsShowingMenu() bool { return v.overlay == actionMenu }

// IsConfirming reports whether a removal awaits confirmation.
func (v *View) IsConfirming() bool { return v.overlay == confirmDelete }

func (v *View) Err() error { return v.err }
