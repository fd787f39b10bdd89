package agent

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the registry when the agents file changes on disk.
// Events are debounced: editors often emit several writes per save.
type Watcher struct {
	registry *Registry
	debounce time.Duration
	fw       *fsnotify.Watcher
}

// NewWatcher creates a watcher over the registry's agents file.
func NewWatcher(registry *Registry, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: many editors replace the file
	// on save, which drops a direct file watch.
	if err := fw.Add(filepath.Dir(registry.Path())); err != nil {
		_ = fw.Close()
		return nil, err
	}

	return &Watcher{registry: registry, debounce: debounce, fw: fw}, nil
}

// Run blocks, reloading on changes until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()

	target := filepath.Clean(w.registry.Path())
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.registry.Reload(); err != nil {
				slog.Warn("agents config reload failed, keeping previous configuration",
					"path", target, "error", err)
				continue
			}
			slog.Info("agents config reloaded", "path", target)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("agents config watch error", "error", err)
		}
	}
}
