// Package watch keeps the vector index in sync with the document directory
// by reacting to filesystem events.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/docs"
)

// Indexer is the slice of the index store the watcher needs.
type Indexer interface {
	Add(ctx context.Context, chunks []docs.Chunk, sourcePath string) error
	RemoveBySource(sourcePath string) error
}

// Writes arrive as bursts of events while a file is copied in; settleDelay
// is how long a path must stay quiet before we reindex it.
const settleDelay = 2 * time.Second

// Watcher mirrors PDF create/update/delete events into the index.
type Watcher struct {
	dir       string
	processor *docs.Processor
	indexer   Indexer
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(dir string, processor *docs.Processor, indexer Indexer) *Watcher {
	return &Watcher{
		dir:       dir,
		processor: processor,
		indexer:   indexer,
		logger:    slog.Default(),
		pending:   make(map[string]*time.Timer),
	}
}

// Run watches the document directory until ctx is canceled. Individual
// reindex failures are logged and the watch continues.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching document directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !strings.HasSuffix(strings.ToLower(event.Name), ".pdf") {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.cancelPath(event.Name)
		w.logger.Info("document removed", "file", filepath.Base(event.Name))
		if err := w.indexer.RemoveBySource(event.Name); err != nil {
			w.logger.Warn("removing document from index", "file", filepath.Base(event.Name), "error", err)
		}
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.schedule(ctx, event.Name)
	}
}

// schedule (re)arms the settle timer for a path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.reindex(ctx, path)
	})
}

func (w *Watcher) reindex(ctx context.Context, path string) {
	name := filepath.Base(path)
	w.logger.Info("reindexing document", "file", name)

	chunks, err := w.processor.ProcessFile(path)
	if err != nil {
		w.logger.Warn("processing changed document", "file", name, "error", err)
		return
	}

	// Drop any chunks from a prior version first so updates never duplicate.
	if err := w.indexer.RemoveBySource(path); err != nil {
		w.logger.Warn("removing stale chunks", "file", name, "error", err)
		return
	}
	if err := w.indexer.Add(ctx, chunks, path); err != nil {
		w.logger.Warn("indexing changed document", "file", name, "error", err)
		return
	}
	w.logger.Info("document reindexed", "file", name, "chunks", len(chunks))
}

func (w *Watcher) cancelPath(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}
