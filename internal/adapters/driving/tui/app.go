package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/views/doccontent"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/views/docdetails"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/views/documents"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/views/settings"
	"github.com/custodia-labs/obra/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles

	menuView       *menu.View
	searchView     *search.View
	chatView       *chat.View
	documentsView  *documents.View
	docContentView *doccontent.View
	docDetailsView *docdetails.View
	settingsView   *settings.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// contentReturn is the view the document content view goes back to.
	contentReturn messages.ViewType

	// startView is opened by Init instead of the menu.
	startView messages.ViewType

	// err holds the last error that occurred.
	err error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	return &App{
		ports:          ports,
		ctx:            context.Background(),
		styles:         s,
		menuView:       menu.NewView(s),
		searchView:     search.NewView(s, nil, ports.Search),
		chatView:       chat.NewView(s, nil, ports.RAG),
		documentsView:  documents.NewView(s, ports.Document),
		docContentView: doccontent.NewView(s, ports.Document),
		docDetailsView: docdetails.NewView(s),
		settingsView:   settings.NewView(s, ports.Settings),
		currentView:    messages.ViewMenu,
		contentReturn:  messages.ViewDocuments,
	}, nil
}

// WithContext sets the context used by every view for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	a.chatView.WithContext(ctx)
	a.documentsView.WithContext(ctx)
	a.docContentView.WithContext(ctx)
	return a
}

// StartIn makes Init open view instead of the menu.
func (a *App) StartIn(view messages.ViewType) *App {
	a.startView = view
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tea.SetWindowTitle("obra - construction cost estimation"),
	}
	if a.startView != messages.ViewMenu {
		cmds = append(cmds, a.switchView(a.startView))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo,funlen // central message handler requires complexity
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a, a.updateActive(msg)

	case messages.ViewChanged:
		return a, a.switchView(msg.View)

	case messages.SearchCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
		return a, cmd

	case messages.AnswerReceived:
		a.chatView, cmd = a.chatView.Update(msg)
		a.err = msg.Err
		return a, cmd

	case messages.DocumentsLoaded, messages.DocumentDeleted:
		a.documentsView, cmd = a.documentsView.Update(msg)
		return a, cmd

	case messages.DocumentSelected:
		a.contentReturn = messages.ViewDocuments
		if a.currentView == messages.ViewSearch {
			a.contentReturn = messages.ViewSearch
		}
		doc := msg.Document
		a.currentView = messages.ViewDocContent
		return a, a.docContentView.SetDocument(&doc)

	case messages.DocumentContentLoaded:
		a.docContentView, cmd = a.docContentView.Update(msg)
		return a, cmd

	case messages.DocumentDetailsRequested:
		doc := msg.Document
		a.docDetailsView.SetDocument(&doc)
		a.currentView = messages.ViewDocDetails
		return a, nil

	case messages.SettingsLoaded, messages.SettingsSaved:
		a.settingsView, cmd = a.settingsView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, a.updateActive(msg)

	case messages.Quit:
		return a, tea.Quit
	}

	return a, a.updateActive(msg)
}

// updateActive forwards a message to the view on screen.
func (a *App) updateActive(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewDocuments:
		a.documentsView, cmd = a.documentsView.Update(msg)
	case messages.ViewDocContent:
		a.docContentView, cmd = a.docContentView.Update(msg)
	case messages.ViewDocDetails:
		a.docDetailsView, cmd = a.docDetailsView.Update(msg)
	case messages.ViewSettings:
		a.settingsView, cmd = a.settingsView.Update(msg)
	case messages.ViewHelp:
		if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEsc {
			a.currentView = messages.ViewMenu
		}
	}

	return cmd
}

// switchView changes the active view, preparing it when entered from the menu.
func (a *App) switchView(target messages.ViewType) tea.Cmd {
	from := a.currentView

	// The content view goes back to wherever the document was opened from.
	if from == messages.ViewDocContent && target == messages.ViewDocuments {
		target = a.contentReturn
	}
	a.currentView = target

	switch target {
	case messages.ViewSearch:
		if from == messages.ViewMenu {
			a.searchView.Reset()
			return a.searchView.Init()
		}
	case messages.ViewChat:
		return a.chatView.Init()
	case messages.ViewDocuments:
		if from == messages.ViewMenu {
			return a.documentsView.Init()
		}
	case messages.ViewSettings:
		a.settingsView.Reset()
		return a.settingsView.Init()
	case messages.ViewMenu, messages.ViewHelp, messages.ViewDocContent, messages.ViewDocDetails:
	}
	return nil
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewSearch:
		return a.searchView.View()
	case messages.ViewChat:
		return a.chatView.View()
	case messages.ViewDocuments:
		return a.documentsView.View()
	case messages.ViewDocContent:
		return a.docContentView.View()
	case messages.ViewDocDetails:
		return a.docDetailsView.View()
	case messages.ViewSettings:
		return a.settingsView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.menuView.View()
	}
}

// helpSections lists the key reference shown by the help view.
var helpSections = []struct {
	title string
	keys  [][2]string
}{
	{"Anywhere", [][2]string{{"esc", "Back"}, {"ctrl+c", "Quit"}}},
	{"Menu", [][2]string{{"j/k", "Move"}, {"enter, 1-6", "Open"}, {"q", "Quit"}}},
	{"Ask", [][2]string{{"enter", "Send the question"}, {"tab", "Show or hide sources"}, {"ctrl+n", "New conversation"}, {"pgup/pgdn", "Scroll"}}},
	{"Search", [][2]string{{"enter", "Search, then open the selected document"}, {"f", "Search within the selected document"}, {"n", "New search"}}},
	{"Documents", [][2]string{{"enter", "Actions"}, {"i", "Details"}, {"d", "Remove"}, {"r", "Reload"}}},
	{"Content", [][2]string{{"/", "Find"}, {"n/N", "Next or previous match"}}},
}

func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	for _, sec := range helpSections {
		b.WriteString("\n\n" + sec.title + ":")
		for _, k := range sec.keys {
			fmt.Fprintf(&b, "\n  %-12s%s", k[0], k[1])
		}
	}
	b.WriteString("\n\nAnswers marked \"market estimate\" are not backed by indexed documents.")
	b.WriteString("\n\n[esc] back to menu")
	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Query returns the current search query.
func (a *App) Query() string {
	return a.searchView.Query()
}

// Results returns the current search results.
func (a *App) Results() []domain.RankedChunk {
	return a.searchView.Results()
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sizes every view to the terminal.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	a.menuView.SetDimensions(width, height)
	a.searchView.SetDimensions(width, height)
	a.chatView.SetDimensions(width, height)
	a.documentsView.SetDimensions(width, height)
	a.docContentView.SetDimensions(width, height)
	a.docDetailsView.SetDimensions(width, height)
	a.settingsView.SetDimensions(width, height)
}
