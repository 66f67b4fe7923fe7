package memory

import (
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in memory. With a base store, reads fall back
// to the base and writes stay in memory, so an ephemeral run can change
// settings without touching config.toml. String values are coerced the
// way the file store coerces OBRA_* overrides.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
	base   driven.ConfigStore
}

// NewConfigStore creates an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{values: make(map[string]any)}
}

// NewConfigStoreFrom creates a store holding a copy of seed.
func NewConfigStoreFrom(seed map[string]any) *ConfigStore {
	s := NewConfigStore()
	for k, v := range seed {
		s.values[k] = v
	}
	return s
}

// NewOverlayConfigStore creates a store layered over base.
func NewOverlayConfigStore(base driven.ConfigStore) *ConfigStore {
	s := NewConfigStore()
	s.base = base
	return s
}

// Get returns the value set in memory, or the base value.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	if ok || s.base == nil {
		return v, ok
	}
	return s.base.Get(key)
}

// GetString returns key as a string, or "".
func (s *ConfigStore) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// GetInt returns key as an int, or 0.
func (s *ConfigStore) GetInt(key string) int {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

// GetBool returns key as a bool, or false.
func (s *ConfigStore) GetBool(key string) bool {
	v, _ := s.Get(key)
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(b))
		return parsed
	}
	return false
}

// GetStringSlice returns key as a string slice. Non-string items are skipped.
func (s *ConfigStore) GetStringSlice(key string) []string {
	v, _ := s.Get(key)
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Set stores value in memory only.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Save is a no-op.
func (s *ConfigStore) Save() error { return nil }

// Load is a no-op.
func (s *ConfigStore) Load() error { return nil }

// Path reports where unchanged values come from.
func (s *ConfigStore) Path() string {
	if s.base != nil {
		return s.base.Path() + " (changes kept in memory)"
	}
	return ":memory:"
}
