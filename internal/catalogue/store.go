package catalogue

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/platformbuilds/mirador-watchdog/internal/metrics"
	"github.com/platformbuilds/mirador-watchdog/pkg/logger"
)

// Store publishes the current catalogue. Readers take one snapshot per run and
// keep using it; a reload never changes a snapshot already handed out.
type Store struct {
	current atomic.Pointer[Catalogue]
}

// NewStore returns a store holding c.
func NewStore(c *Catalogue) *Store {
	s := &Store{}
	s.current.Store(c)
	return s
}

// Current returns the catalogue in effect.
func (s *Store) Current() *Catalogue {
	return s.current.Load()
}

// Replace swaps in a new catalogue.
func (s *Store) Replace(c *Catalogue) {
	s.current.Store(c)
}

// Watcher reloads a catalogue file into a Store whenever it is written.
// Invalid files are logged and ignored; the previous catalogue stays in effect.
type Watcher struct {
	path   string
	store  *Store
	logger logger.Logger
}

// NewWatcher creates a watcher for path feeding store.
func NewWatcher(path string, store *Store, log logger.Logger) *Watcher {
	return &Watcher{path: path, store: store, logger: log}
}

// Start blocks until ctx is done, reloading on file changes.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are seen too.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch catalogue file: %w", err)
	}

	w.logger.Info("Catalogue watcher started", "path", w.path)

	target := filepath.Clean(w.path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Info("Catalogue file changed, reloading", "file", event.Name)
			w.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Catalogue watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("Catalogue watcher stopping")
			return nil
		}
	}
}

// Reload reads the file once and swaps it in if it is valid.
func (w *Watcher) Reload() bool {
	c, err := LoadFile(w.path)
	if err != nil {
		metrics.CatalogueReloadsTotal.WithLabelValues("error").Inc()
		w.logger.Error("Failed to reload catalogue, keeping previous", "path", w.path, "error", err)
		return false
	}
	w.store.Replace(c)
	metrics.CatalogueReloadsTotal.WithLabelValues("success").Inc()
	w.logger.Info("Catalogue reloaded", "path", w.path, "nodes", c.Len())
	return true
}
