package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/obra/internal/logger"
)

// DefaultDebounce groups rapid saves of one file into a single change.
const DefaultDebounce = 500 * time.Millisecond

// ChangeType classifies a file change.
type ChangeType int

const (
	// ChangeUpserted means the file was created or modified.
	ChangeUpserted ChangeType = iota

	// ChangeDeleted means the file was removed or renamed away.
	ChangeDeleted
)

// String returns the change name.
func (t ChangeType) String() string {
	if t == ChangeDeleted {
		return "deleted"
	}
	return "upserted"
}

// Change is a settled modification of an accepted file.
type Change struct {
	Path string
	Type ChangeType
}

// Watcher reports changes to accepted files under a directory tree.
type Watcher struct {
	root     string
	accept   Accept
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]pendingChange
	now     func() time.Time
}

type pendingChange struct {
	typ  ChangeType
	seen time.Time
}

// NewWatcher creates a watcher for root. Debounce zero uses DefaultDebounce.
func NewWatcher(root string, accept Accept, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		root:     root,
		accept:   accept,
		debounce: debounce,
		watcher:  w,
		pending:  make(map[string]pendingChange),
		now:      time.Now,
	}, nil
}

// Watch starts watching and returns the change channel. The channel is
// closed, and the watcher released, when ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	if err := w.addTree(w.root); err != nil {
		w.watcher.Close()
		return nil, err
	}

	changes := make(chan Change)
	go w.run(ctx, changes)
	return changes, nil
}

// addTree watches dir and every non-hidden subdirectory.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, changes chan<- Change) {
	defer close(changes)
	defer w.watcher.Close()

	ticker := time.NewTicker(w.debounce / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Watcher error: %v", err)

		case <-ticker.C:
			for _, c := range w.settled() {
				select {
				case changes <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// handleEvent records a pending change for accepted files. New directories
// are added to the watch list.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if isHidden(event.Name) {
		return
	}

	var typ ChangeType
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if event.Op&fsnotify.Create != 0 {
				if err := w.addTree(event.Name); err != nil {
					logger.Warn("Watch new directory: %v", err)
				}
			}
			return
		}
		typ = ChangeUpserted
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		typ = ChangeDeleted
	default:
		return
	}

	if !w.accept(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = pendingChange{typ: typ, seen: w.now()}
	w.mu.Unlock()
}

// settled removes and returns the changes quiet for at least the debounce window.
func (w *Watcher) settled() []Change {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Change
	cutoff := w.now().Add(-w.debounce)
	for path, p := range w.pending {
		if p.seen.After(cutoff) {
			continue
		}
		out = append(out, Change{Path: path, Type: p.typ})
		delete(w.pending, path)
	}
	return out
}
