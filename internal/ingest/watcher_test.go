package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	ing, _ := newTestIngester(t)
	w, err := NewWatcher(t.TempDir(), ing)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.watcher.Close() })
	return w
}

func TestWatcherDebounceTrailingEdge(t *testing.T) {
	w := newTestWatcher(t)

	// A save burst: three writes within the window.
	start := time.Now()
	for i := 0; i < 3; i++ {
		w.recordEvent(fsnotify.Event{Name: "/kb/pricing.md", Op: fsnotify.Write})
	}

	// Nothing settles while the burst is still inside the window.
	if got := w.takeSettled(start.Add(100 * time.Millisecond)); len(got) != 0 {
		t.Fatalf("settled during the burst window: %v", got)
	}

	// After quiescence the path settles exactly once.
	settled := w.takeSettled(start.Add(w.debounceDur + time.Second))
	if len(settled) != 1 || settled[0] != "/kb/pricing.md" {
		t.Fatalf("settled = %v, want [/kb/pricing.md]", settled)
	}
	if got := w.takeSettled(start.Add(w.debounceDur + 2*time.Second)); len(got) != 0 {
		t.Fatalf("path settled twice: %v", got)
	}
}

func TestWatcherLaterEventRestartsWindow(t *testing.T) {
	w := newTestWatcher(t)

	w.recordEvent(fsnotify.Event{Name: "/kb/a.md", Op: fsnotify.Write})
	first := w.pending["/kb/a.md"]

	// A second save restarts the window, so the path must not settle at a
	// time that is past the first event but not the second.
	w.pending["/kb/a.md"] = first.Add(400 * time.Millisecond)
	if got := w.takeSettled(first.Add(w.debounceDur)); len(got) != 0 {
		t.Fatalf("settled before the last event went quiet: %v", got)
	}
	if got := w.takeSettled(first.Add(400*time.Millisecond + w.debounceDur)); len(got) != 1 {
		t.Fatalf("settled = %v, want one path after quiescence", got)
	}
}

func TestWatcherIgnoresUnsupportedAndChmod(t *testing.T) {
	w := newTestWatcher(t)

	w.recordEvent(fsnotify.Event{Name: "/kb/notes.pdf", Op: fsnotify.Write})
	w.recordEvent(fsnotify.Event{Name: "/kb/keep.md", Op: fsnotify.Chmod})

	if len(w.pending) != 0 {
		t.Errorf("pending = %v, want empty", w.pending)
	}
}

func TestWatcherProcessIngestsSettledFile(t *testing.T) {
	ing, cs := newTestIngester(t)
	dir := t.TempDir()
	w, err := NewWatcher(dir, ing)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.watcher.Close() })

	path := filepath.Join(dir, "pricing.md")
	if err := writeFile(path, "The premium plan costs $99 per month for teams."); err != nil {
		t.Fatal(err)
	}

	w.process(context.Background(), path)
	stats, err := cs.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 1 {
		t.Fatalf("Documents = %d, want 1 after settle", stats.Documents)
	}

	// Deleting the file and settling again removes its document.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	w.process(context.Background(), path)
	stats, err = cs.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 0 {
		t.Fatalf("Documents = %d, want 0 after delete settle", stats.Documents)
	}
}
