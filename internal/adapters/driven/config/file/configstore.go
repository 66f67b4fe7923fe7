package file

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/obra/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// EnvPrefix namespaces environment overrides. OBRA_RAG_MIN_SCORE overrides rag.min_score.
const EnvPrefix = "OBRA_"

// DirName is the application directory under the user's home.
const DirName = ".obra"

// ConfigStore keeps settings in config.toml under the application directory.
// Keys are dotted ("rag.min_score") and are written back as TOML tables.
//
// Reads resolve OBRA_* environment variables first, then the file, then for
// "<section>.api_key" the provider's own variable (GEMINI_API_KEY,
// OPENAI_API_KEY) picked by "<section>.provider". The environment is never
// written to the file.
type ConfigStore struct {
	path   string
	lookup func(string) (string, bool)

	mu   sync.RWMutex
	data map[string]any
}

// NewConfigStore opens the store in dir, defaulting to DefaultDir. A .env in
// the working directory or in dir is loaded into the process environment
// first without replacing variables that are already set.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	for _, env := range []string{".env", filepath.Join(dir, ".env")} {
		if err := godotenv.Load(env); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	s := &ConfigStore{
		path:   filepath.Join(dir, "config.toml"),
		lookup: os.LookupEnv,
		data:   map[string]any{},
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultDir returns $OBRA_HOME, or ~/.obra when unset.
func DefaultDir() (string, error) {
	if dir := os.Getenv("OBRA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

// EnvName returns the environment variable overriding a config key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Get returns the raw value for key.
func (s *ConfigStore) Get(key string) (any, bool) {
	if v, ok := s.lookup(EnvName(key)); ok && v != "" {
		return v, true
	}

	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	if ok {
		return v, true
	}

	section, field, dotted := strings.Cut(key, ".")
	if !dotted || field != "api_key" {
		return nil, false
	}
	provider := s.GetString(section + ".provider")
	if provider == "" {
		provider = "gemini"
	}
	if v, ok := s.lookup(strings.ToUpper(provider) + "_API_KEY"); ok && v != "" {
		return v, true
	}
	return nil, false
}

// GetString returns key as a string, or "" when absent or not a string.
func (s *ConfigStore) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// GetInt returns key as an int. Environment strings are parsed.
func (s *ConfigStore) GetInt(key string) int {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	}
	return 0
}

// GetBool returns key as a bool. Environment strings are parsed.
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

// GetStringSlice returns key as a list. Environment values are comma separated.
func (s *ConfigStore) GetStringSlice(key string) []string {
	v, _ := s.Get(key)
	var out []string
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out = make([]string, 0, len(items))
		for _, item := range items {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
	case string:
		for _, part := range strings.Split(items, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Set stores value and writes the file. If the write fails the previous
// value is restored.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.data[key]
	s.data[key] = value
	if err := s.write(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Save writes the current configuration to disk.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write()
}

// write replaces the file atomically. Callers hold the lock.
func (s *ConfigStore) write() error {
	data, err := toml.Marshal(nest(s.data))
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load rereads the file. A missing file is an empty configuration.
func (s *ConfigStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		raw, err = nil, nil
	}
	if err != nil {
		return err
	}

	tree := map[string]any{}
	if err := toml.Unmarshal(raw, &tree); err != nil {
		return err
	}

	flat := map[string]any{}
	flatten(tree, "", flat)

	s.mu.Lock()
	s.data = flat
	s.mu.Unlock()
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.path
}

// flatten turns nested tables into dotted keys: [rag] min_score becomes rag.min_score.
func flatten(tree map[string]any, prefix string, into map[string]any) {
	for k, v := range tree {
		if prefix != "" {
			k = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(sub, k, into)
			continue
		}
		into[k] = v
	}
}

// nest is the inverse of flatten. A key whose prefix already holds a plain
// value stays as a quoted dotted key.
func nest(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tree := map[string]any{}
	for _, key := range keys {
		v := flat[key]
		parts := strings.Split(key, ".")
		node := tree
		ok := true
		for _, p := range parts[:len(parts)-1] {
			child, exists := node[p]
			if !exists {
				child = map[string]any{}
				node[p] = child
			}
			if node, ok = child.(map[string]any); !ok {
				break
			}
		}
		if ok {
			node[parts[len(parts)-1]] = v
		} else {
			tree[key] = v
		}
	}
	return tree
}
