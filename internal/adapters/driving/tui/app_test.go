package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/obra/internal/core/domain"
)

func newTestPorts() *Ports {
	return &Ports{
		Search:   &MockSearchService{},
		RAG:      &MockRAGService{},
		Document: &MockDocumentService{},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(newTestPorts())
	require.NoError(t, err)
	app.SetDimensions(100, 30)
	return app
}

// goTo navigates the app to a view as the menu would.
func goTo(app *App, view messages.ViewType) tea.Cmd {
	_, cmd := app.Update(messages.ViewChanged{View: view})
	return cmd
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(newTestPorts())

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
	assert.False(t, app.Ready())
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(&Ports{RAG: &MockRAGService{}})

	require.ErrorIs(t, err, ErrMissingSearchService)
	assert.Nil(t, app)
}

func TestApp_WithContext(t *testing.T) {
	app := newTestApp(t)
	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("key"), "value")

	assert.Equal(t, app, app.WithContext(ctx))
	assert.Equal(t, ctx, app.ctx)
}

func TestApp_Init(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	assert.NotNil(t, app.Init())
}

func TestApp_StartIn(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	app.StartIn(messages.ViewChat).Init()

	assert.Equal(t, messages.ViewChat, app.CurrentView())
}

func TestApp_WindowSize(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.True(t, app.Ready())
	assert.Equal(t, 120, app.width)
	assert.Equal(t, 40, app.height)
}

func TestApp_ViewNotReady(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	assert.Equal(t, "Initialising...", app.View())
}

func TestApp_CtrlCQuits(t *testing.T) {
	app := newTestApp(t)
	goTo(app, messages.ViewChat)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestApp_QuitMessage(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(messages.Quit{})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestApp_MenuEnterSwitchesView(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	app.Update(cmd())

	assert.Equal(t, messages.ViewChat, app.CurrentView())
}

func TestApp_ViewChanged(t *testing.T) {
	tests := []struct {
		view     messages.ViewType
		wantInit bool
		contains string
	}{
		{view: messages.ViewSearch, wantInit: true, contains: "Search"},
		{view: messages.ViewChat, wantInit: true, contains: "Ask"},
		{view: messages.ViewDocuments, wantInit: true, contains: "Documents"},
		{view: messages.ViewSettings, wantInit: true, contains: "Settings"},
		{view: messages.ViewHelp, contains: "market estimate"},
	}

	for _, tt := range tests {
		t.Run(tt.view.String(), func(t *testing.T) {
			app := newTestApp(t)

			cmd := goTo(app, tt.view)

			assert.Equal(t, tt.view, app.CurrentView())
			assert.Equal(t, tt.wantInit, cmd != nil)
			assert.Contains(t, app.View(), tt.contains)
		})
	}
}

func TestApp_HelpEscReturnsToMenu(t *testing.T) {
	app := newTestApp(t)
	goTo(app, messages.ViewHelp)

	assert.Contains(t, app.View(), "Search within the selected document")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_SearchFlow(t *testing.T) {
	ports := newTestPorts()
	ports.Search = &MockSearchService{
		SearchFunc: func(_ context.Context, req domain.SearchRequest) ([]domain.RankedChunk, error) {
			return []domain.RankedChunk{
				{ChunkID: "c1", DocumentID: "doc-1", Filename: "tarifa.pdf", Content: req.Query, Score: 0.9},
			}, nil
		},
	}
	app, err := NewApp(ports)
	require.NoError(t, err)
	app.SetDimensions(100, 30)
	goTo(app, messages.ViewSearch)

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("yeso")})
	assert.Equal(t, "yeso", app.Query())

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	app.Update(cmd())

	require.Len(t, app.Results(), 1)
	assert.NoError(t, app.Err())
}

func TestApp_SearchError(t *testing.T) {
	app := newTestApp(t)
	goTo(app, messages.ViewSearch)

	app.Update(messages.SearchCompleted{Err: domain.ErrEmbeddingUnavailable})

	require.ErrorIs(t, app.Err(), domain.ErrEmbeddingUnavailable)
	assert.Contains(t, app.View(), "Error:")
}

func TestApp_DocumentFromSearchReturnsToSearch(t *testing.T) {
	app := newTestApp(t)
	goTo(app, messages.ViewSearch)
	app.Update(messages.SearchCompleted{Results: []domain.RankedChunk{{ChunkID: "c1", DocumentID: "doc-1"}}})

	_, cmd := app.Update(messages.DocumentSelected{Document: domain.Document{ID: "doc-1"}})
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewDocContent, app.CurrentView())

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	app.Update(cmd())

	assert.Equal(t, messages.ViewSearch, app.CurrentView())
	assert.Len(t, app.Results(), 1)
}

func TestApp_DocumentFromListReturnsToList(t *testing.T) {
	app := newTestApp(t)
	goTo(app, messages.ViewDocuments)

	app.Update(messages.DocumentSelected{Document: domain.Document{ID: "doc-1"}})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	app.Update(cmd())

	assert.Equal(t, messages.ViewDocuments, app.CurrentView())
}

func TestApp_DocumentContentLoaded(t *testing.T) {
	ports := newTestPorts()
	ports.Document = &MockDocumentService{
		GetContentFunc: func(_ context.Context, _ string) (string, error) {
			return "E08PTY010 m2 Enlucido de yeso 9,80", nil
		},
	}
	app, _ := NewApp(ports)
	app.SetDimensions(100, 30)

	_, cmd := app.Update(messages.DocumentSelected{Document: domain.Document{ID: "doc-1", Filename: "base.bc3"}})
	require.NotNil(t, cmd)
	app.Update(cmd())

	assert.Contains(t, app.View(), "Enlucido de yeso")
}

func TestApp_DocumentDetailsRequested(t *testing.T) {
	app := newTestApp(t)
	goTo(app, messages.ViewDocuments)

	app.Update(messages.DocumentDetailsRequested{Document: domain.Document{ID: "doc-7", Filename: "precios.xlsx"}})

	assert.Equal(t, messages.ViewDocDetails, app.CurrentView())
	assert.Contains(t, app.View(), "precios.xlsx")
}

func TestApp_DocumentsLoaded(t *testing.T) {
	app := newTestApp(t)
	goTo(app, messages.ViewDocuments)

	app.Update(messages.DocumentsLoaded{Documents: []domain.Document{
		{ID: "doc-1", Filename: "tarifa.pdf", Status: domain.StatusCompleted, ChunkCount: 12},
	}})

	assert.Contains(t, app.View(), "tarifa.pdf")
}

func TestApp_AnswerReceived(t *testing.T) {
	ports := newTestPorts()
	ports.RAG = &MockRAGService{
		QueryFunc: func(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
			return &domain.QueryResponse{Answer: "Unos 24 euros", SessionID: "s1"}, nil
		},
	}
	app, _ := NewApp(ports)
	app.SetDimensions(100, 30)
	goTo(app, messages.ViewChat)

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("alicatado")})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	app.Update(messages.AnswerReceived{
		Question: "alicatado",
		Response: &domain.QueryResponse{Answer: "Unos 24 euros", SessionID: "s1"},
	})

	assert.NoError(t, app.Err())
	assert.Contains(t, app.View(), "alicatado")
}

func TestApp_AnswerErrorRecorded(t *testing.T) {
	app := newTestApp(t)
	goTo(app, messages.ViewChat)

	app.Update(messages.AnswerReceived{Err: domain.ErrLLMUnavailable})

	assert.ErrorIs(t, app.Err(), domain.ErrLLMUnavailable)
}

func TestApp_ErrorOccurred(t *testing.T) {
	app := newTestApp(t)
	goTo(app, messages.ViewSearch)

	app.Update(messages.ErrorOccurred{Err: errors.New("boom")})

	require.Error(t, app.Err())
	assert.Contains(t, app.View(), "boom")
}

func TestApp_SettingsWithoutService(t *testing.T) {
	app := newTestApp(t)
	cmd := goTo(app, messages.ViewSettings)
	require.NotNil(t, cmd)

	app.Update(cmd())

	assert.Contains(t, app.View(), "settings service not available")
}
