package chat

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/obra/internal/core/domain"
)

type mockRAGService struct {
	response *domain.QueryResponse
	err      error
	requests []domain.QueryRequest
	cleared  []string
}

func (m *mockRAGService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	m.requests = append(m.requests, req)
	return m.response, m.err
}

func (m *mockRAGService) ClearSession(sessionID string) bool {
	m.cleared = append(m.cleared, sessionID)
	return true
}

func answer(text string, estimate bool) *domain.QueryResponse {
	page := 12
	return &domain.QueryResponse{
		Answer:    text,
		SessionID: "sess-1",
		Sources: []domain.RankedChunk{
			{ChunkID: "c1", DocumentID: "d1", Filename: "tarifa_2024.pdf", Page: &page, Score: 0.82},
		},
		Metadata: domain.QueryMetadata{ResultsCount: 1, MaxScore: 0.82, IsMarketEstimate: estimate},
	}
}

func readyView(svc *mockRAGService) *View {
	var v *View
	if svc == nil {
		v = NewView(nil, nil, nil)
	} else {
		v = NewView(nil, nil, svc)
	}
	v.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return v
}

func typeText(v *View, s string) {
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// ask submits a question and feeds the resulting message back into the view.
func ask(t *testing.T, v *View, question string) tea.Msg {
	t.Helper()
	typeText(v, question)
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.True(t, v.Thinking())

	msg := v.ask(question)()
	v.Update(msg)
	return msg
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, nil)

	require.NotNil(t, v)
	assert.False(t, v.ready)
	assert.Equal(t, "Initialising...", v.View())
	assert.Empty(t, v.SessionID())
}

func TestView_Init(t *testing.T) {
	assert.NotNil(t, NewView(nil, nil, nil).Init())
}

func TestView_SubmitQueriesWithSession(t *testing.T) {
	svc := &mockRAGService{response: answer("El alicatado cuesta 24,50 €/m2 [1].", false)}
	v := readyView(svc)

	ask(t, v, "precio alicatado")

	require.Len(t, svc.requests, 1)
	assert.Equal(t, "precio alicatado", svc.requests[0].Query)
	assert.NotEmpty(t, svc.requests[0].SessionID)
	assert.False(t, v.Thinking())
	assert.Equal(t, "sess-1", v.SessionID())
	assert.Equal(t, 1, v.Turns())

	ask(t, v, "y el rodapié")

	require.Len(t, svc.requests, 2)
	assert.Equal(t, "sess-1", svc.requests[1].SessionID)
}

func TestView_EmptySubmitIgnored(t *testing.T) {
	v := readyView(&mockRAGService{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Equal(t, 0, v.Turns())
}

func TestView_SubmitWhileThinkingIgnored(t *testing.T) {
	v := readyView(&mockRAGService{})
	typeText(v, "uno")
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	typeText(v, "dos")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Equal(t, 1, v.Turns())
}

func TestView_TranscriptShowsAnswer(t *testing.T) {
	v := readyView(&mockRAGService{response: answer("Precio medio de alicatado", false)})

	ask(t, v, "alicatado")
	out := v.Transcript()

	assert.Contains(t, out, "> alicatado")
	assert.Contains(t, out, "Precio medio")
	assert.Contains(t, out, "1 sources (tab to show)")
	assert.NotContains(t, out, "market estimate")
}

func TestView_MarketEstimateBadge(t *testing.T) {
	v := readyView(&mockRAGService{response: answer("Estimación de mercado", true)})

	ask(t, v, "precio pladur")

	assert.Contains(t, v.Transcript(), "market estimate")
}

func TestView_TabTogglesSources(t *testing.T) {
	v := readyView(&mockRAGService{response: answer("respuesta", false)})
	ask(t, v, "pregunta")

	v.Update(tea.KeyMsg{Type: tea.KeyTab})

	assert.Contains(t, v.Transcript(), "[1] tarifa_2024.pdf, page 12 (0.82)")

	v.Update(tea.KeyMsg{Type: tea.KeyTab})

	assert.NotContains(t, v.Transcript(), "[1] tarifa_2024.pdf")
}

func TestView_QueryError(t *testing.T) {
	v := readyView(&mockRAGService{err: domain.ErrLLMUnavailable})

	ask(t, v, "precio")

	assert.Contains(t, v.Transcript(), "Error:")
	assert.Equal(t, status.StateError, v.statusbar.State())
	assert.False(t, v.Thinking())
}

func TestView_NoService(t *testing.T) {
	v := readyView(nil)

	msg := ask(t, v, "precio")

	answered, ok := msg.(messages.AnswerReceived)
	require.True(t, ok)
	assert.ErrorIs(t, answered.Err, ErrNoRAGService)
}

func TestView_NewChatClearsSession(t *testing.T) {
	svc := &mockRAGService{response: answer("respuesta", false)}
	v := readyView(svc)
	ask(t, v, "pregunta")

	v.Update(tea.KeyMsg{Type: tea.KeyCtrlN})

	assert.Equal(t, []string{"sess-1"}, svc.cleared)
	assert.Empty(t, v.SessionID())
	assert.Equal(t, 0, v.Turns())
}

func TestView_StaleAnswerAfterNewChatDropped(t *testing.T) {
	svc := &mockRAGService{response: answer("tarde", false)}
	v := readyView(svc)
	typeText(v, "pregunta")
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	v.NewChat()

	v.Update(messages.AnswerReceived{Question: "pregunta", Response: answer("tarde", false)})

	assert.Equal(t, 0, v.Turns())
	assert.Empty(t, v.SessionID())
}

func TestView_EscReturnsToMenu(t *testing.T) {
	v := readyView(nil)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}

func TestView_TypingQDoesNotQuit(t *testing.T) {
	v := readyView(nil)

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.Equal(t, "q", v.prompt.Value())
}

func TestView_RenderEmpty(t *testing.T) {
	v := readyView(nil)

	out := v.View()

	assert.Contains(t, out, "obra")
	assert.Contains(t, out, "Ask")
	assert.Contains(t, out, "unit prices")
}

func TestView_RenderMarkdownFallsBack(t *testing.T) {
	v := readyView(nil)
	v.renderer = nil

	assert.Equal(t, "**plain**", v.renderMarkdown("**plain**"))
}

