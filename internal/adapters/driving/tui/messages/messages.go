// Package messages defines the tea.Msg values exchanged between the app and its views.
package messages

import (
	"github.com/custodia-labs/obra/internal/core/domain"
)

// ViewType identifies a screen of the TUI.
type ViewType int

// Screens.
const (
	ViewMenu ViewType = iota
	ViewSearch
	ViewChat
	ViewHelp
	ViewDocuments
	ViewDocContent
	ViewDocDetails
	ViewSettings
)

var viewNames = [...]string{
	ViewMenu:       "menu",
	ViewSearch:     "search",
	ViewChat:       "chat",
	ViewHelp:       "help",
	ViewDocuments:  "documents",
	ViewDocContent: "doc_content",
	ViewDocDetails: "doc_details",
	ViewSettings:   "settings",
}

// String returns the screen name.
func (v ViewType) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return "unknown"
	}
	return viewNames[v]
}

// ViewChanged asks the app to switch screens.
type ViewChanged struct {
	View ViewType
}

// Quit asks the app to exit.
type Quit struct{}

// ErrorOccurred reports a failure not tied to another message.
type ErrorOccurred struct {
	Err error
}

// SearchCompleted carries ranked fragments for the search view.
type SearchCompleted struct {
	Results []domain.RankedChunk
	Err     error
}

// AnswerReceived carries the answer to a chat question.
type AnswerReceived struct {
	Question string
	Response *domain.QueryResponse
	Err      error
}

// DocumentsLoaded carries the indexed documents.
type DocumentsLoaded struct {
	Documents []domain.Document
	Err       error
}

// DocumentSelected opens a document's content.
type DocumentSelected struct {
	Document domain.Document
}

// DocumentDetailsRequested opens a document's metadata.
type DocumentDetailsRequested struct {
	Document domain.Document
}

// DocumentContentLoaded carries the extracted text of a document.
type DocumentContentLoaded struct {
	DocumentID string
	Content    string
	Err        error
}

// DocumentDeleted reports the removal of a document and its chunks.
type DocumentDeleted struct {
	DocumentID string
	Err        error
}

// SettingsLoaded carries the current settings.
type SettingsLoaded struct {
	Settings *domain.AppSettings
	Err      error
}

// SettingsSaved reports the outcome of a settings change.
type SettingsSaved struct {
	Err error
}
