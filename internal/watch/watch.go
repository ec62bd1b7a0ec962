// Package watch reports changes to the hosts file and the servers directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups bursts of events, such as an editor's write and rename.
const DefaultDebounce = 200 * time.Millisecond

// Change lists the paths touched during one debounce window.
type Change struct {
	Paths []string
}

// Watcher watches individual files and whole directories.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger

	mu      sync.Mutex
	files   map[string]bool
	dirs    map[string]bool
	watched map[string]bool
}

// New creates a watcher. Files in watched directories whose base name matches
// one of the ignore globs are not reported.
func New(debounce time.Duration, ignore []string, logger *slog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fs:       fs,
		debounce: debounce,
		ignore:   ignore,
		logger:   logger,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		watched:  make(map[string]bool),
	}, nil
}

// AddFile watches a single file. Its parent directory is watched so that
// replacing the file by rename is still seen.
func (w *Watcher) AddFile(path string) error {
	path = filepath.Clean(path)
	if err := w.add(filepath.Dir(path)); err != nil {
		return err
	}
	w.mu.Lock()
	w.files[path] = true
	w.mu.Unlock()
	return nil
}

// AddDir watches every file directly inside dir.
func (w *Watcher) AddDir(dir string) error {
	dir = filepath.Clean(dir)
	if err := w.add(dir); err != nil {
		return err
	}
	w.mu.Lock()
	w.dirs[dir] = true
	w.mu.Unlock()
	return nil
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watched[dir] = true
	return nil
}

// Close releases the watcher without starting it.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Start delivers debounced changes until ctx is done, then closes the
// channel and the underlying watcher.
func (w *Watcher) Start(ctx context.Context) <-chan Change {
	out := make(chan Change)
	go w.loop(ctx, out)
	return out
}

func (w *Watcher) loop(ctx context.Context, out chan<- Change) {
	defer close(out)
	defer w.fs.Close()

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())
			pending[filepath.Clean(event.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-fire:
			change := Change{Paths: make([]string, 0, len(pending))}
			for p := range pending {
				change.Paths = append(change.Paths, p)
			}
			sort.Strings(change.Paths)
			pending = make(map[string]bool)
			timer, fire = nil, nil

			select {
			case out <- change:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	name = filepath.Clean(name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.files[name] {
		return true
	}
	if !w.dirs[filepath.Dir(name)] {
		return false
	}
	base := filepath.Base(name)
	for _, pattern := range w.ignore {
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return false
		}
	}
	return true
}
