package projectconfig

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write before
// reapplying the project file.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reapplies the project file to a Manager whenever it changes on
// disk.
type Watcher struct {
	manager  *Manager
	path     string
	debounce time.Duration
	logger   *slog.Logger

	// OnApply, if set, is called after every reapply attempt.
	OnApply func(err error)
}

// NewWatcher creates a Watcher for the project file at path.
func NewWatcher(m *Manager, path string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		manager:  m,
		path:     path,
		debounce: debounce,
		logger:   logger,
	}
}

// Run watches until ctx is cancelled. The directory is watched rather than
// the file so editors that replace the file on save are picked up.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("watch project file: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch project file: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch project file: %w", err)
	}

	w.logger.Info("watching project file", "path", abs)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("project file watcher error", "err", err)
		case <-timer.C:
			err := w.manager.ApplyFile(ctx, abs)
			if err != nil {
				w.logger.Error("reapply project file failed", "path", abs, "err", err)
			} else {
				w.logger.Info("project file reapplied", "path", abs)
			}
			if w.OnApply != nil {
				w.OnApply(err)
			}
		}
	}
}
