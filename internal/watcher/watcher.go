// Package watcher turns filesystem change notifications under a catalog root
// into debounced sync requests.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 2 * time.Second

// Trigger is invoked once per burst of changes, typically Library.Sync.
type Trigger func(ctx context.Context) error

// Filter reports whether a changed file is relevant. Directories are always
// relevant since removing one removes everything below it.
type Filter func(name string) bool

type Watcher struct {
	root     string
	debounce time.Duration
	trigger  Trigger
	filter   Filter
	logger   logging.Logger

	mu    sync.Mutex
	timer *time.Timer
}

func New(root string, debounce time.Duration, trigger Trigger, filter Filter, logger logging.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if filter == nil {
		filter = func(string) bool { return true }
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		trigger:  trigger,
		filter:   filter,
		logger:   logger.With("module", "watcher"),
	}
}

// Run watches the tree until ctx is done. Directories created later are
// added as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info(ctx, "watching catalog root", "root", w.root, "debounce", w.debounce.String())

	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	isDir := false
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			isDir = true
			if err := w.addTree(fsw, ev.Name); err != nil {
				w.logger.Warn(ctx, "failed to watch new directory", "path", ev.Name, "error", err)
			}
		}
	}
	// removed or renamed entries can no longer be stat'ed; an extension-less
	// name is most likely a directory
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && filepath.Ext(ev.Name) == "" {
		isDir = true
	}
	if !isDir && !w.filter(ev.Name) {
		return
	}
	w.logger.Debug(ctx, "catalog change", "path", ev.Name, "op", ev.Op.String())
	w.schedule(ctx)
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := w.trigger(ctx); err != nil {
			w.logger.Warn(ctx, "sync after catalog change failed", "error", err)
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	if err := fsw.Add(root); err != nil {
		return fmt.Errorf("failed to watch %q: %w", root, err)
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || path == root || !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn(context.Background(), "failed to watch subdirectory", "path", path, "error", err)
		}
		return nil
	})
}
