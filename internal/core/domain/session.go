package domain

import "time"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	// Role is RoleUser or RoleAssistant.
	Role string

	// Content is the message text.
	Content string
}

// SessionStats describes the session store for monitoring.
type SessionStats struct {
	TotalSessions  int
	ActiveSessions int
	MaxSessions    int
	TTL            time.Duration
}
