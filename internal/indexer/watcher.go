package indexer

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"geoindex/internal/database"
	"geoindex/internal/logging"
	"geoindex/internal/metrics"
)

// Watcher reports tracked roots whose direct children were created, removed,
// renamed or written. Only roots are watched, matching the granularity of
// mtime-based change detection.
type Watcher struct {
	watcher       *fsnotify.Watcher
	onChange      func(roots ...string)
	debounceDelay time.Duration
	log           *logging.Logger

	mu      sync.Mutex
	watched map[string]struct{}
	done    chan struct{}
}

// NewWatcher creates a watcher that calls onChange with the affected roots
// once events have been quiet for debounce.
func NewWatcher(debounce time.Duration, onChange func(roots ...string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		watcher:       fw,
		onChange:      onChange,
		debounceDelay: debounce,
		log:           logging.New("watcher"),
		watched:       make(map[string]struct{}),
		done:          make(chan struct{}),
	}, nil
}

// Start processes events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.watchEvents(ctx)
}

// Stop releases the underlying watcher.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

// Sync makes the watched set equal to the given tracked directories.
func (w *Watcher) Sync(dirs []database.TrackedDirectory) {
	w.mu.Lock()
	defer w.mu.Unlock()

	want := make(map[string]struct{}, len(dirs))
	for _, d := range dirs {
		want[d.Path] = struct{}{}
	}

	for path := range w.watched {
		if _, ok := want[path]; !ok {
			if err := w.watcher.Remove(path); err != nil {
				w.log.Debug("unwatch %s: %v", path, err)
			}
			delete(w.watched, path)
		}
	}
	for path := range want {
		if _, ok := w.watched[path]; ok {
			continue
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("Failed to watch directory %s: %v", path, err)
			continue
		}
		w.watched[path] = struct{}{}
	}

	metrics.IndexerWatchedDirectories.Set(float64(len(w.watched)))
}

// Count returns how many roots are being watched.
func (w *Watcher) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func (w *Watcher) rootOf(name string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[name]; ok {
		return name, true
	}
	parent := filepath.Dir(name)
	_, ok := w.watched[parent]
	return parent, ok
}

func (w *Watcher) watchEvents(ctx context.Context) {
	defer close(w.done)

	pending := make(map[string]struct{})
	var pendingMu sync.Mutex
	var debounceTimer *time.Timer

	flush := func() {
		pendingMu.Lock()
		roots := make([]string, 0, len(pending))
		for r := range pending {
			roots = append(roots, r)
		}
		pending = make(map[string]struct{})
		pendingMu.Unlock()

		if len(roots) == 0 {
			return
		}
		sort.Strings(roots)
		w.log.Debug("changes under %v", roots)
		w.onChange(roots...)
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				return
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			metrics.IndexerWatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

			root, ok := w.rootOf(event.Name)
			if !ok {
				continue
			}
			pendingMu.Lock()
			pending[root] = struct{}{}
			pendingMu.Unlock()

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounceDelay, flush)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("File watcher error: %v", err)
		}
	}
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return "create"
	case op&fsnotify.Write == fsnotify.Write:
		return "write"
	case op&fsnotify.Remove == fsnotify.Remove:
		return "remove"
	case op&fsnotify.Rename == fsnotify.Rename:
		return "rename"
	default:
		return "other"
	}
}
