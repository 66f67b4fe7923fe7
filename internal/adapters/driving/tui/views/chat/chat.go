// Package chat provides the cost question conversation view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
)

// ErrNoRAGService is returned when the chat has no query port.
var ErrNoRAGService = errors.New("query service not available")

// chrome is the number of lines taken by the header, prompt and status bar.
const chrome = 8

// turn is one question and its answer.
type turn struct {
	question string
	answer   string
	estimate bool
	sources  []domain.RankedChunk
	err      error
	pending  bool
}

// View is the chat view.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	prompt    *input.Prompt
	viewport  viewport.Model
	spinner   spinner.Model
	statusbar *status.Bar
	renderer  *glamour.TermRenderer

	ragService driving.RAGService
	ctx        context.Context

	turns       []turn
	sessionID   string
	thinking    bool
	showSources bool

	width  int
	height int
	ready  bool
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, ragService driving.RAGService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Warning

	bar := status.NewBar(s, km)
	bar.SetHints(km.ChatHelp())

	v := &View{
		styles:     s,
		keymap:     km,
		prompt:     input.NewPrompt(s, "Ask", "e.g. ¿Cuánto cuesta el m2 de alicatado?"),
		viewport:   viewport.New(80, 24-chrome),
		spinner:    sp,
		statusbar:  bar,
		ragService: ragService,
		ctx:        context.Background(),
		width:      80,
		height:     24,
	}
	v.renderer = newRenderer(80)
	return v
}

func newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return nil
	}
	return r
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init focuses the prompt.
func (v *View) Init() tea.Cmd {
	return tea.Batch(v.prompt.Focus(), v.prompt.Init())
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case spinner.TickMsg:
		if !v.thinking {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		v.refresh()
		return v, cmd

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case keymap.Matches(keyStr, v.keymap.NewChat):
		v.NewChat()
		return v, nil
	case keymap.Matches(keyStr, v.keymap.Sources):
		v.showSources = !v.showSources
		v.refresh()
		return v, nil
	case keymap.Matches(keyStr, v.keymap.Submit):
		return v, v.submit()
	}

	//nolint:exhaustive // only scrolling keys go to the viewport
	switch msg.Type {
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.prompt, cmd = v.prompt.Update(msg)
	return v, cmd
}

// submit sends the typed question. Nothing is sent while an answer is pending.
func (v *View) submit() tea.Cmd {
	if v.thinking {
		return nil
	}
	question := v.prompt.Submitted()
	if question == "" {
		return nil
	}

	// History is keyed by a client-chosen id.
	if v.sessionID == "" {
		v.sessionID = uuid.NewString()
	}
	v.turns = append(v.turns, turn{question: question, pending: true})
	v.thinking = true
	v.statusbar.SetState(status.StateThinking)
	v.statusbar.SetMessage("")
	v.refresh()

	return tea.Batch(v.ask(question), v.spinner.Tick)
}

func (v *View) ask(question string) tea.Cmd {
	ctx, svc, sessionID := v.ctx, v.ragService, v.sessionID
	return func() tea.Msg {
		if svc == nil {
			return messages.AnswerReceived{Question: question, Err: ErrNoRAGService}
		}
		resp, err := svc.Query(ctx, domain.QueryRequest{Query: question, SessionID: sessionID})
		return messages.AnswerReceived{Question: question, Response: resp, Err: err}
	}
}

func (v *View) handleAnswer(msg messages.AnswerReceived) {
	v.thinking = false

	// An answer for a conversation cleared while it was pending is dropped.
	if len(v.turns) == 0 || !v.turns[len(v.turns)-1].pending {
		v.statusbar.SetState(status.StateReady)
		return
	}
	t := &v.turns[len(v.turns)-1]
	t.pending = false

	if msg.Err != nil {
		t.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		v.refresh()
		return
	}

	if msg.Response != nil {
		t.answer = msg.Response.Answer
		t.estimate = msg.Response.Metadata.IsMarketEstimate
		t.sources = msg.Response.Sources
		if msg.Response.SessionID != "" {
			v.sessionID = msg.Response.SessionID
		}
	}
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("")
	v.refresh()
}

// NewChat forgets the current conversation and starts a fresh one.
func (v *View) NewChat() {
	if v.sessionID != "" && v.ragService != nil {
		v.ragService.ClearSession(v.sessionID)
	}
	v.sessionID = ""
	v.turns = nil
	v.thinking = false
	v.showSources = false
	v.prompt.SetValue("")
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("New conversation")
	v.refresh()
}

func (v *View) refresh() {
	v.viewport.SetContent(v.renderTranscript())
	v.viewport.GotoBottom()
}

func (v *View) renderMarkdown(content string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = content
		}
	}()
	if v.renderer == nil || content == "" {
		return content
	}
	rendered, err := v.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

func (v *View) renderTranscript() string {
	if len(v.turns) == 0 {
		return v.styles.Muted.Render("Ask about unit prices, materials or labour. Answers cite the indexed documents.")
	}

	var b strings.Builder
	for i := range v.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		v.renderTurn(&b, &v.turns[i])
	}
	return b.String()
}

func (v *View) renderTurn(b *strings.Builder, t *turn) {
	b.WriteString(v.styles.Question.Render("> " + t.question))
	b.WriteString("\n")

	switch {
	case t.pending:
		b.WriteString(v.spinner.View() + " " + v.styles.Muted.Render("Thinking..."))
		return
	case t.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + t.err.Error()))
		return
	}

	if t.estimate {
		b.WriteString(v.styles.EstimateBadge.Render("market estimate"))
		b.WriteString("\n")
	}
	b.WriteString(v.renderMarkdown(t.answer))

	if len(t.sources) == 0 {
		return
	}
	b.WriteString("\n")
	if !v.showSources {
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("%d sources (tab to show)", len(t.sources))))
		return
	}
	for i := range t.sources {
		line := fmt.Sprintf("  [%d] %s (%.2f)", i+1, list.Provenance(&t.sources[i]), t.sources[i].Score)
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(line))
	}
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		v.styles.Title.Render("obra")+" "+v.styles.Subtitle.Render("cost questions"),
		"",
		v.viewport.View(),
		"",
		v.prompt.View(),
		v.statusbar.View(),
	)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.viewport.Width = width
	v.viewport.Height = max(height-chrome, 3)
	v.prompt.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.renderer = newRenderer(width)
	v.refresh()
}

// SessionID returns the conversation id assigned by the query service.
func (v *View) SessionID() string {
	return v.sessionID
}

// Thinking reports whether an answer is pending.
func (v *View) Thinking() bool {
	return v.thinking
}

// Turns returns the number of questions asked in this conversation.
func (v *View) Turns() int {
	return len(v.turns)
}

// Transcript returns the rendered conversation.
func (v *View) Transcript() string {
	return v.renderTranscript()
}
