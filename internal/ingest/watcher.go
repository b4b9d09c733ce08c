package ingest

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"counsel/internal/logging"
)

// Watcher re-ingests knowledge files as they change on disk. Events are
// debounced per path on the trailing edge: a save burst is coalesced and the
// file is ingested once, after it has been quiet for the debounce window, so
// half-written saves are never indexed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	ingester *Ingester
	dir      string

	mu          sync.Mutex
	running     bool
	pending     map[string]time.Time
	debounceDur time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher builds a watcher over one knowledge directory.
func NewWatcher(dir string, ingester *Ingester) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fsw,
		ingester:    ingester,
		dir:         dir,
		pending:     make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine
// until Stop or the context ends.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	logging.Ingest("watching %s for knowledge changes", w.dir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.recordEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryIngest).Warn("watch error: %v", err)
		case <-ticker.C:
			for _, path := range w.takeSettled(time.Now()) {
				w.process(ctx, path)
			}
		}
	}
}

// recordEvent marks a path pending. Each new event restarts its window.
func (w *Watcher) recordEvent(event fsnotify.Event) {
	if !Supported(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// takeSettled removes and returns the paths whose last event is at least a
// full debounce window old at time now.
func (w *Watcher) takeSettled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var settled []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	return settled
}

// process re-ingests a settled path, or removes its document when the file
// is gone. Existence is checked at settle time so a write-then-delete burst
// resolves to the final state.
func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			logging.Get(logging.CategoryIngest).Warn("stat %s failed: %v", path, err)
			return
		}
		if err := w.ingester.Remove(ctx, path); err != nil {
			logging.Get(logging.CategoryIngest).Warn("remove %s failed: %v", path, err)
		} else {
			logging.Ingest("removed document for %s", path)
		}
		return
	}

	if _, n, err := w.ingester.IngestFile(ctx, path); err != nil {
		logging.Get(logging.CategoryIngest).Warn("re-ingest %s failed: %v", path, err)
	} else {
		logging.Ingest("re-ingested %s (%d chunks)", path, n)
	}
}
