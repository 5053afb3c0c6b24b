package persona

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a prompt table file into Templates when it changes.
type Watcher struct {
	path      string
	templates *Templates
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	logger    *zap.Logger
}

// NewWatcher watches the directory holding path. Editors often replace files
// instead of writing in place, so the directory is watched rather than the file.
func NewWatcher(path string, templates *Templates, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:      filepath.Clean(path),
		templates: templates,
		watcher:   fw,
		debounce:  250 * time.Millisecond,
		logger:    logger.With(zap.String("component", "prompt_watcher")),
	}, nil
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
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
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			pending = timer.C
		case <-pending:
			pending = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Prompt watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	table, err := LoadTable(w.path)
	if err != nil {
		w.logger.Warn("Prompt reload failed, keeping previous table", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.templates.Replace(table)
	w.logger.Info("Prompt table reloaded", zap.String("path", w.path))
}
