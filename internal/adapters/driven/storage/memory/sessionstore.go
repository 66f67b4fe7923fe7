package memory

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

// Ensure SessionStore implements the interface.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore keeps conversation history in memory. History is lost on exit.
//
// Sessions expire after TTL without access. When MaxSessions is reached the
// least recently used session is evicted to make room for a new one.
type SessionStore struct {
	// mu serialises read-modify-write of one session's messages; the cache
	// itself is safe for concurrent use.
	mu     sync.Mutex
	limits domain.SessionSettings
	cache  *expirable.LRU[string, []domain.ChatMessage]
}

// NewSessionStore creates a session store. Zero limits take the defaults.
func NewSessionStore(limits domain.SessionSettings) *SessionStore {
	d := domain.DefaultAppSettings().Session
	if limits.MaxMessages <= 0 {
		limits.MaxMessages = d.MaxMessages
	}
	if limits.PromptMessages <= 0 {
		limits.PromptMessages = d.PromptMessages
	}
	if limits.TTL <= 0 {
		limits.TTL = d.TTL
	}
	if limits.MaxSessions <= 0 {
		limits.MaxSessions = d.MaxSessions
	}
	return &SessionStore{
		limits: limits,
		cache:  expirable.NewLRU[string, []domain.ChatMessage](limits.MaxSessions, nil, limits.TTL),
	}
}

// History returns up to PromptMessages recent messages, oldest first.
// Reading refreshes the session's expiry.
func (s *SessionStore) History(sessionID string) []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, ok := s.cache.Get(sessionID)
	if !ok {
		return nil
	}
	// Re-adding resets the TTL; Get alone only bumps recency.
	s.cache.Add(sessionID, msgs)

	if len(msgs) > s.limits.PromptMessages {
		msgs = msgs[len(msgs)-s.limits.PromptMessages:]
	}
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// AddExchange appends a user message and the assistant's answer.
func (s *SessionStore) AddExchange(sessionID, userMessage, assistantMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, _ := s.cache.Get(sessionID)
	msgs := make([]domain.ChatMessage, 0, len(prev)+2)
	msgs = append(msgs, prev...)
	msgs = append(msgs,
		domain.ChatMessage{Role: domain.RoleUser, Content: userMessage},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: assistantMessage},
	)
	if extra := len(msgs) - s.limits.MaxMessages; extra > 0 {
		msgs = msgs[extra:]
	}
	s.cache.Add(sessionID, msgs)
}

// Clear removes a session. Returns false if it did not exist or had expired.
func (s *SessionStore) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, live := s.cache.Peek(sessionID)
	s.cache.Remove(sessionID)
	return live
}

// Stats reports session counts and limits. Expired sessions count towards
// the total until the cache purges them.
func (s *SessionStore) Stats() domain.SessionStats {
	return domain.SessionStats{
		TotalSessions:  s.cache.Len(),
		ActiveSessions: len(s.cache.Keys()),
		MaxSessions:    s.limits.MaxSessions,
		TTL:            s.limits.TTL,
	}
}
