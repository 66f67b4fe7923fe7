package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/logger"
	"github.com/custodia-labs/obra/internal/prompts"
)

var _ driven.PromptStore = (*PromptStore)(nil)

var (
	errEmptyPrompt    = errors.New("empty prompt file")
	errPlaceholderSet = errors.New("placeholders differ from the built-in template")
)

const readme = `# Prompts de obra

Cada fichero .txt contiene una plantilla usada al consultar el modelo.
Los cambios se aplican en el siguiente comando.

## Ficheros

%s
## Marcadores

Las plantillas usan marcadores ` + "`%%s`" + ` de Go. ` + "`rag_context`" + ` espera los fragmentos y la pregunta;
` + "`price_estimate`" + ` espera resumen, unidad y descripción, en ese orden.
Una plantilla con un número distinto de marcadores se ignora y se usa la de serie.
`

// PromptStore serves prompt templates from user-editable files in a
// directory, seeding it with the built-in templates on first use.
//
// A file that is missing, empty, or whose %s count differs from the
// built-in template is ignored in favour of the built-in one.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore creates a prompt store. An empty dir means <DefaultDir>/prompts.
// No files are touched until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		base, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(base, "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the template called name.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	builtin := prompts.Default(name)
	text, err := s.read(name, builtin)
	if err != nil {
		if builtin == "" {
			if s.seedErr != nil {
				return "", fmt.Errorf("prompt store init failed: %w", s.seedErr)
			}
			return "", fmt.Errorf("load prompt %q: %w", name, err)
		}
		if errors.Is(err, errPlaceholderSet) {
			logger.Warn("prompt %s: %v, using the built-in template", s.pathFor(name), err)
		}
		text = builtin
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = text
	return text, nil
}

// read loads a user template and checks it against the built-in one.
func (s *PromptStore) read(name, builtin string) (string, error) {
	data, err := os.ReadFile(s.pathFor(name))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	switch {
	case text == "":
		return "", errEmptyPrompt
	case builtin != "" && placeholders(text) != placeholders(builtin):
		return "", fmt.Errorf("%w (%d, want %d)", errPlaceholderSet, placeholders(text), placeholders(builtin))
	}
	return text, nil
}

// placeholders counts %s verbs, ignoring escaped percent signs.
func placeholders(tmpl string) int {
	return strings.Count(strings.ReplaceAll(tmpl, "%%", ""), "%s")
}

// Reload drops cached templates so edits on disk take effect.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) pathFor(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

// seed writes the built-in templates and a README without overwriting
// anything the user already has.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	var files strings.Builder
	for _, name := range prompts.Names() {
		fmt.Fprintf(&files, "- `%s.txt`\n", name)
		if err := writeIfAbsent(s.pathFor(name), prompts.Default(name)); err != nil {
			s.seedErr = fmt.Errorf("create default prompt %q: %w", name, err)
			return
		}
	}
	if err := writeIfAbsent(filepath.Join(s.dir, "README.md"), fmt.Sprintf(readme, files.String())); err != nil {
		s.seedErr = err
	}
}

func writeIfAbsent(path, content string) error {
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0600)
}
