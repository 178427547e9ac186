package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// PromptWatcher clears a prompt store's cache whenever a prompt file in
// its directory is created, written, removed or renamed.
type PromptWatcher struct {
	store    driven.PromptStore
	dir      string
	watcher  *fsnotify.Watcher
	onReload func(name string)
}

// NewPromptWatcher creates a watcher for the prompt files in dir.
func NewPromptWatcher(store driven.PromptStore, dir string) (*PromptWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create prompt watcher: %w", err)
	}
	return &PromptWatcher{store: store, dir: dir, watcher: w}, nil
}

// OnReload registers a callback invoked after each reload with the changed file.
func (w *PromptWatcher) OnReload(fn func(name string)) {
	w.onReload = fn
}

// Start begins watching. Events are processed until ctx is done or Stop is called.
func (w *PromptWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".txt" {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				w.store.Reload()
				logger.Debug("Prompt %s changed, cache cleared", filepath.Base(event.Name))
				if w.onReload != nil {
					w.onReload(event.Name)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Prompt watcher error: %v", err)
			}
		}
	}()
	return nil
}

// Stop releases the underlying watcher.
func (w *PromptWatcher) Stop() error {
	return w.watcher.Close()
}
