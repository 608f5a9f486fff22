package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"examprep/internal/logger"
)

// ChangeType classifies a filesystem change.
type ChangeType int

const (
	ChangeCreated ChangeType = iota
	ChangeUpdated
	ChangeRemoved
)

func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is a settled change to one matching file.
type Change struct {
	Path string
	Type ChangeType
}

// DefaultDebounce is how long a file must be quiet before its change is
// reported. Copying a large PDF produces many writes.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes to files under root that the walker selects.
type Watcher struct {
	root     string
	walker   *Walker
	debounce time.Duration
}

func NewWatcher(root string, walker *Walker, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{root: abs, walker: walker, debounce: debounce}, nil
}

// Watch starts watching root and its non-excluded subdirectories. Changes
// are delivered after the debounce period, in path order per flush. The
// channel closes when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := w.addTree(fw, w.root); err != nil {
		fw.Close()
		return nil, err
	}

	out := make(chan Change)
	go w.loop(ctx, fw, out)
	return out, nil
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(w.root, path); rel != "." && w.walker.ExcludesDir(rel) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// watchNewDir adds a subdirectory created while watching. Files in a
// directory that could not be added are missed until the next restart.
func (w *Watcher) watchNewDir(fw *fsnotify.Watcher, dir string) {
	if err := w.addTree(fw, dir); err != nil {
		logger.Warn("cannot watch new directory", "dir", dir, "err", err)
	}
}

type pendingChange struct {
	change Change
	at     time.Time
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan<- Change) {
	defer close(out)
	defer fw.Close()

	pending := make(map[string]pendingChange)

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.watchNewDir(fw, ev.Name)
					continue
				}
			}
			change, ok := w.handleEvent(ev)
			if !ok {
				continue
			}
			if prev, exists := pending[change.Path]; exists && prev.change.Type == ChangeCreated && change.Type == ChangeUpdated {
				change.Type = ChangeCreated
			}
			pending[change.Path] = pendingChange{change: change, at: time.Now()}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher error", "root", w.root, "err", err)

		case now := <-ticker.C:
			var ready []Change
			for path, p := range pending {
				if now.Sub(p.at) >= w.debounce {
					ready = append(ready, p.change)
					delete(pending, path)
				}
			}

			sort.Slice(ready, func(i, j int) bool { return ready[i].Path < ready[j].Path })
			for _, c := range ready {
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// handleEvent maps a raw event to a change, dropping directories, hidden
// files, unmatched paths and attribute-only events.
func (w *Watcher) handleEvent(ev fsnotify.Event) (Change, bool) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Change{}, false
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") || !w.walker.Matches(rel) {
		return Change{}, false
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return Change{Path: ev.Name, Type: ChangeRemoved}, true
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return Change{}, false
		}
		typ := ChangeUpdated
		if ev.Has(fsnotify.Create) {
			typ = ChangeCreated
		}
		return Change{Path: ev.Name, Type: typ}, true
	default:
		return Change{}, false
	}
}
