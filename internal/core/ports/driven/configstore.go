package driven

// ConfigStore is a flat key/value view of config.toml. Keys are dotted
// paths such as "rag.min_score". Typed getters return the zero value when
// the key is absent or cannot be coerced.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Set records a value. File-backed stores write it through at once.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path names where the values live, for display.
	Path() string
}
