// Package watcher rebuilds the index when files under the indexed root change.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 2 * time.Second

// RebuildFunc rebuilds the index from the watched root.
type RebuildFunc func(ctx context.Context) error

// Watcher watches a directory tree and calls a RebuildFunc once changes have
// been quiet for the debounce interval. Rebuilds never overlap; changes made
// during a rebuild schedule another one.
type Watcher struct {
	root       string
	extensions []string
	ignore     []string
	rebuild    RebuildFunc
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	done       chan struct{}
	started    bool
	stopOnce   sync.Once
	logger     *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for events and rebuild results.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long changes must be quiet before a rebuild.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnore excludes paths (and everything below them) from triggering
// rebuilds, such as an index directory inside the root.
func WithIgnore(paths ...string) WatcherOption {
	return func(w *Watcher) {
		for _, p := range paths {
			if abs, err := filepath.Abs(p); err == nil {
				w.ignore = append(w.ignore, filepath.Clean(abs))
			}
		}
	}
}

// NewWatcher creates a watcher for root. extensions filter which file
// changes count (empty = all).
func NewWatcher(root string, extensions []string, rebuild RebuildFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:       root,
		extensions: extensions,
		rebuild:    rebuild,
		debounce:   defaultDebounce,
		done:       make(chan struct{}),
		logger:     zap.NewNop(),
	}
	if abs, err := filepath.Abs(root); err == nil {
		w.root = filepath.Clean(abs)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start watches every directory under root. It returns once the watches are
// in place; events are handled until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher
	if err := w.addTree(w.root); err != nil {
		_ = watcher.Close()
		w.watcher = nil
		return err
	}
	w.started = true
	w.logger.Debug("watcher starting", zap.String("root", w.root), zap.Strings("extensions", w.extensions))
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		trigger = func() {
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		}
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if w.handleEvent(ev) {
				trigger()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case <-timerC:
			timerC = nil
			w.runRebuild(ctx)
		}
	}
}

// handleEvent reports whether ev should schedule a rebuild. New directories
// are watched as they appear.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	path := filepath.Clean(ev.Name)
	if !inDir(w.root, path) || w.ignored(path) {
		return false
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.mu.Lock()
			if w.watcher != nil {
				if err := w.addTree(path); err != nil {
					w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				}
			}
			w.mu.Unlock()
			return true
		}
		return matchExtension(path, w.extensions)
	case ev.Has(fsnotify.Write):
		return matchExtension(path, w.extensions)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// The path is gone, so it may have been a directory.
		return true
	}
	return false
}

func (w *Watcher) runRebuild(ctx context.Context) {
	if ctx.Err() != nil || w.rebuild == nil {
		return
	}
	start := time.Now()
	if err := w.rebuild(ctx); err != nil {
		w.logger.Error("watcher rebuild failed", zap.String("root", w.root), zap.Error(err))
		return
	}
	w.logger.Info("watcher rebuild finished", zap.String("root", w.root), zap.Duration("elapsed", time.Since(start)))
}

// addTree watches dir and its sub-directories. Callers hold w.mu.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	for _, p := range w.ignore {
		if inDir(p, path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// Root returns the watched directory.
func (w *Watcher) Root() string { return w.root }

// Stop stops the watcher and releases resources. It does not wait for a
// rebuild in progress.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
