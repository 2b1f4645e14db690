package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Handle owns an index directory and the pointer to its active generation.
// Readers Acquire the current generation; the Builder publishes new ones.
type Handle struct {
	dir    string
	logger *zap.Logger

	mu      sync.RWMutex
	current *Generation
	closed  bool
	// seen is CURRENT as last loaded; broken is why the generation it names
	// could not be opened.
	seen   os.FileInfo
	broken error

	// held lists retired generations still referenced by readers.
	heldMu sync.Mutex
	held   map[string]struct{}

	writeMu sync.Mutex
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the logger for the handle.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handle) {
		h.logger = logger
	}
}

// Open prepares dir for use and loads the generation named by CURRENT, if
// any. A generation that cannot be opened is logged and left for the next
// build to replace; until then Acquire reports why.
func Open(dir string, opts ...Option) (*Handle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &IndexError{Op: "open", Path: dir, Err: err}
	}
	h := &Handle{dir: abs, logger: zap.NewNop(), held: make(map[string]struct{})}
	for _, opt := range opts {
		opt(h)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, &IndexError{Op: "open", Path: abs, Err: err}
	}
	if err := h.load(); err != nil {
		return nil, &IndexError{Op: "open", Path: filepath.Join(abs, CurrentFileName), Err: err}
	}
	return h, nil
}

// load opens the generation named by CURRENT when CURRENT changed since the
// last call. Only failures to read CURRENT itself are returned.
func (h *Handle) load() error {
	info, err := os.Stat(filepath.Join(h.dir, CurrentFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	h.mu.RLock()
	unchanged := h.seen != nil && os.SameFile(h.seen, info) && h.seen.ModTime().Equal(info.ModTime())
	h.mu.RUnlock()
	if unchanged {
		return nil
	}

	name, err := h.readCurrent()
	if errors.Is(err, errBadCurrent) {
		h.markBroken(info, &IndexError{Op: "open", Path: filepath.Join(h.dir, CurrentFileName), Err: err})
		return nil
	}
	if err != nil {
		return err
	}
	if name == "" || name == h.CurrentID() {
		h.mu.Lock()
		h.seen = info
		h.mu.Unlock()
		return nil
	}
	gen, err := openGeneration(filepath.Join(h.dir, name))
	if err != nil {
		h.markBroken(info, &IndexError{Op: "open", Path: filepath.Join(h.dir, name), Err: err})
		return nil
	}
	h.swap(gen, info)
	h.logger.Info("Opened index generation",
		zap.String("generation", gen.ID()),
		zap.Int("documents", gen.DocCount()),
	)
	return nil
}

func (h *Handle) markBroken(info os.FileInfo, err error) {
	h.logger.Warn("Index generation is unreadable, rebuild to replace it", zap.Error(err))
	h.mu.Lock()
	h.seen = info
	h.broken = err
	h.mu.Unlock()
}

// refresh picks up a generation published by another process. It is skipped
// while a build in this process holds the write lock.
func (h *Handle) refresh() {
	if !h.writeMu.TryLock() {
		return
	}
	defer h.writeMu.Unlock()
	if err := h.load(); err != nil {
		h.logger.Warn("Failed to check for a newer generation", zap.Error(err))
	}
}

// Dir returns the absolute index directory.
func (h *Handle) Dir() string { return h.dir }

// Acquire returns the current generation with a reference held for the
// caller. Before the first successful build it returns ErrNoGeneration, or
// an *IndexError if CURRENT names a generation that cannot be opened.
func (h *Handle) Acquire() (*Generation, error) {
	h.refresh()
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, errors.New("index handle is closed")
	}
	if h.current == nil {
		if h.broken != nil {
			return nil, h.broken
		}
		return nil, ErrNoGeneration
	}
	h.current.acquire()
	return h.current, nil
}

// CurrentID returns the active generation name, or "" if none.
func (h *Handle) CurrentID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return ""
	}
	return h.current.ID()
}

// Close drops the handle's reference to the current generation. Readers
// that still hold it keep it open until they release it.
func (h *Handle) Close() error {
	h.mu.Lock()
	cur := h.current
	h.current = nil
	h.closed = true
	h.mu.Unlock()
	if cur != nil {
		cur.Release()
	}
	return nil
}

func (h *Handle) readCurrent() (string, error) {
	b, err := os.ReadFile(filepath.Join(h.dir, CurrentFileName))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(b))
	if _, tmp, ok := parseGenerationName(name); !ok || tmp {
		return "", fmt.Errorf("%w: %q", errBadCurrent, name)
	}
	return name, nil
}

// writeCurrent replaces CURRENT atomically with name.
func (h *Handle) writeCurrent(name string) error {
	path := filepath.Join(h.dir, CurrentFileName)
	tmp := path + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if _, err := f.WriteString(name + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return syncDir(h.dir)
}

// publish makes gen the current generation. The previous one is retired and
// removed once its last reader releases it.
func (h *Handle) publish(gen *Generation) error {
	if err := h.writeCurrent(gen.ID()); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Join(h.dir, CurrentFileName))
	if err != nil {
		info = nil
	}
	h.swap(gen, info)
	return nil
}

// swap installs gen and retires the generation it replaces.
func (h *Handle) swap(gen *Generation, info os.FileInfo) {
	gen.onFree = h.forget

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		gen.Release()
		return
	}
	old := h.current
	h.current = gen
	h.seen = info
	h.broken = nil
	h.mu.Unlock()

	if old != nil {
		h.heldMu.Lock()
		h.held[old.ID()] = struct{}{}
		h.heldMu.Unlock()
		old.onFree = h.forget
		old.retired.Store(true)
		old.Release()
		h.logger.Debug("Retired index generation", zap.String("generation", old.ID()))
	}
}

func (h *Handle) forget(g *Generation) {
	h.heldMu.Lock()
	delete(h.held, g.ID())
	h.heldMu.Unlock()
}

// cleanup removes temporary directories and generations that are neither
// current nor still held by a reader. It runs under the write lock.
func (h *Handle) cleanup() (nextSeq uint64, err error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return 0, err
	}
	// Another process may have published since this handle loaded its generation.
	keep := map[string]bool{h.CurrentID(): true}
	if name, err := h.readCurrent(); err == nil {
		keep[name] = true
	}
	h.heldMu.Lock()
	defer h.heldMu.Unlock()
	for _, e := range entries {
		seq, tmp, ok := parseGenerationName(e.Name())
		if !ok {
			continue
		}
		if seq >= nextSeq {
			nextSeq = seq + 1
		}
		if keep[e.Name()] {
			continue
		}
		if _, inUse := h.held[e.Name()]; inUse && !tmp {
			continue
		}
		if err := os.RemoveAll(filepath.Join(h.dir, e.Name())); err != nil {
			h.logger.Warn("Failed to remove stale generation", zap.String("name", e.Name()), zap.Error(err))
			continue
		}
		h.logger.Debug("Removed stale generation", zap.String("name", e.Name()))
	}
	if nextSeq == 0 {
		nextSeq = 1
	}
	return nextSeq, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return nil
}
