package knowledge

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces rapid write events before reindexing. Editors
// and deploy scripts commonly emit several writes per save.
const debounceDelay = 500 * time.Millisecond

// Watcher rebuilds the index when the knowledge file changes on disk.
type Watcher struct {
	index   *Index
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher creates a watcher for the index's knowledge file.
// The parent directory is watched because editors replace files by rename.
func NewWatcher(index *Index, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(index.config.Path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{index: index, watcher: fsw, logger: logger}, nil
}

// Run processes file events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	target := filepath.Clean(w.index.config.Path)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
				timerC = timer.C
			} else {
				timer.Reset(debounceDelay)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.index.Reload(); err != nil {
				w.logger.Error("Knowledge reindex failed", "error", err)
			} else {
				w.logger.Info("Knowledge reindexed after file change")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Knowledge watcher error", "error", err)
		}
	}
}
