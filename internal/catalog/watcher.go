package catalog

import (
	"context"
	"fmt"

	"rulebook-classifier/internal/common/logger"
	"rulebook-classifier/internal/store"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a file store's rulebooks as soon as their files change.
// Removing a file leaves the last published rulebook in place.
type Watcher struct {
	files    *store.FileStore
	reloader *Reloader
	logger   logger.Logger
	onChange func(organization string, err error)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewWatcher(files *store.FileStore, reloader *Reloader, log logger.Logger) *Watcher {
	return &Watcher{
		files:    files,
		reloader: reloader,
		logger:   log.WithFields(map[string]interface{}{"component": "rulebook-watcher", "directory": files.Dir()}),
	}
}

// OnChange registers a callback invoked after every reload the watcher triggers.
func (w *Watcher) OnChange(fn func(organization string, err error)) {
	w.onChange = fn
}

// Start begins watching the store directory. The watch loop stops when ctx is
// cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(w.files.Dir()); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", w.files.Dir(), err)
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	go w.loop(ctx)

	w.logger.Info("watching rulebook directory", nil)
	return nil
}

// Close stops the watcher and waits for the loop to exit.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			org, ok := w.files.OrganizationForPath(event.Name)
			if !ok {
				continue
			}

			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				err := w.reloader.Reload(ctx, org)
				if w.onChange != nil {
					w.onChange(org, err)
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.logger.Warn("rulebook file removed, keeping published version", map[string]interface{}{
					"organization": org,
					"file":         event.Name,
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("rulebook watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}
