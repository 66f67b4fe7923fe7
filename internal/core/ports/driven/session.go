package driven

import "github.com/custodia-labs/obra/internal/core/domain"

// SessionStore keeps recent conversation history per session.
type SessionStore interface {
	// History returns the most recent messages of a session, oldest first.
	// Unknown or expired sessions have no history.
	History(sessionID string) []domain.ChatMessage

	// AddExchange appends a question and its answer, creating the session if needed.
	AddExchange(sessionID, userMessage, assistantMessage string)

	// Clear removes a session. Returns false if it did not exist.
	Clear(sessionID string) bool

	// Stats describes the store.
	Stats() domain.SessionStats
}
