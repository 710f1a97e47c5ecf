package watch

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/docs"
)

type recordingIndexer struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (r *recordingIndexer) Add(_ context.Context, _ []docs.Chunk, sourcePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, sourcePath)
	return nil
}

func (r *recordingIndexer) RemoveBySource(sourcePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, sourcePath)
	return nil
}

func newTestWatcher(t *testing.T) (*Watcher, *recordingIndexer, string) {
	t.Helper()
	dir := t.TempDir()
	idx := &recordingIndexer{}
	w := New(dir, docs.NewProcessor(1000, 200), idx)
	return w, idx, dir
}

func TestHandleEvent_RemoveDropsFromIndex(t *testing.T) {
	w, idx, dir := newTestWatcher(t)
	path := filepath.Join(dir, "guide.pdf")

	w.handleEvent(context.Background(), fsnotify.Event{Name: path, Op: fsnotify.Remove})

	if len(idx.removed) != 1 || idx.removed[0] != path {
		t.Errorf("removed = %v, want [%s]", idx.removed, path)
	}
}

func TestHandleEvent_IgnoresNonPDF(t *testing.T) {
	w, idx, dir := newTestWatcher(t)

	w.handleEvent(context.Background(), fsnotify.Event{
		Name: filepath.Join(dir, "notes.txt"),
		Op:   fsnotify.Remove,
	})
	w.handleEvent(context.Background(), fsnotify.Event{
		Name: filepath.Join(dir, "notes.txt"),
		Op:   fsnotify.Write,
	})

	if len(idx.removed) != 0 {
		t.Errorf("removed = %v, want none", idx.removed)
	}
	w.mu.Lock()
	n := len(w.pending)
	w.mu.Unlock()
	if n != 0 {
		t.Error("non-PDF write should not be scheduled")
	}
}

func TestHandleEvent_WriteArmsSettleTimer(t *testing.T) {
	w, _, dir := newTestWatcher(t)
	path := filepath.Join(dir, "guide.pdf")

	w.handleEvent(context.Background(), fsnotify.Event{Name: path, Op: fsnotify.Write})
	w.mu.Lock()
	_, armed := w.pending[path]
	w.mu.Unlock()
	if !armed {
		t.Fatal("write event should arm a settle timer")
	}

	// A later remove cancels the pending reindex.
	w.handleEvent(context.Background(), fsnotify.Event{Name: path, Op: fsnotify.Remove})
	w.mu.Lock()
	_, armed = w.pending[path]
	w.mu.Unlock()
	if armed {
		t.Error("remove should cancel the pending timer")
	}
}

func TestReindex_UnreadableFileTouchesNothing(t *testing.T) {
	w, idx, dir := newTestWatcher(t)

	w.reindex(context.Background(), filepath.Join(dir, "missing.pdf"))

	if len(idx.removed) != 0 || len(idx.added) != 0 {
		t.Errorf("index touched for unreadable file: removed=%v added=%v", idx.removed, idx.added)
	}
}

func TestCancelPending(t *testing.T) {
	w, _, dir := newTestWatcher(t)

	for _, name := range []string{"a.pdf", "b.pdf"} {
		w.handleEvent(context.Background(), fsnotify.Event{
			Name: filepath.Join(dir, name),
			Op:   fsnotify.Create,
		})
	}
	w.cancelPending()

	w.mu.Lock()
	n := len(w.pending)
	w.mu.Unlock()
	if n != 0 {
		t.Errorf("pending = %d, want 0 after cancelPending", n)
	}
}
