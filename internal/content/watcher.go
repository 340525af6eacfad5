package content

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits after the last write to a
// file before reloading it.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reloads course files in a directory as they change.
type Watcher struct {
	dir      string
	onLoad   func(*Course)
	logger   *zap.Logger
	debounce time.Duration
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets the quiet period before a changed file is reloaded.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for dir. onLoad is called from the watcher's
// goroutine with every course that loads, including one whose rejected
// paths were dropped. Files that fail to load are logged and skipped.
func NewWatcher(dir string, onLoad func(*Course), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:      dir,
		onLoad:   onLoad,
		logger:   zap.NewNop(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching content", zap.String("dir", w.dir))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := map[string]struct{}{}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := FormatFromPath(ev.Name); !ok {
				continue
			}
			pending[filepath.Clean(ev.Name)] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("content watcher", zap.Error(err))

		case <-timer.C:
			for path := range pending {
				w.reload(path)
			}
			clear(pending)
		}
	}
}

func (w *Watcher) reload(path string) {
	c, err := LoadFile(path)
	if err != nil {
		w.logger.Warn("content reload", zap.String("file", path), zap.Error(err))
	}
	if c == nil {
		return
	}
	w.logger.Info("content reloaded",
		zap.String("file", path),
		zap.String("course_id", c.ID),
		zap.String("version", c.Version),
	)
	w.onLoad(c)
}
