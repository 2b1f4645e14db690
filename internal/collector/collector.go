// Package collector walks a directory tree and extracts one document per file.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/docsearch/internal/config"
	"github.com/hyperjump/docsearch/internal/document"
	"github.com/hyperjump/docsearch/internal/extract"
	"github.com/hyperjump/docsearch/internal/models"
)

// ErrFileTooLarge is recorded for files over the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// ErrExtractTimeout is recorded when an extraction outlives its deadline.
var ErrExtractTimeout = errors.New("extraction timed out")

// Result is the outcome of one collection.
type Result struct {
	Documents []*models.Document
	Failures  []*extract.ExtractionError
}

// Collector extracts documents from a directory tree with a bounded worker pool.
type Collector struct {
	extractor  extract.ContentExtractor
	workers    int
	timeout    time.Duration
	maxSize    int64
	extensions []string
	exclude    []string
	logger     *zap.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger for per-file failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithExclude skips the given directories and everything below them.
func WithExclude(dirs ...string) Option {
	return func(c *Collector) {
		for _, d := range dirs {
			if abs, err := filepath.Abs(d); err == nil {
				c.exclude = append(c.exclude, filepath.Clean(abs))
			}
		}
	}
}

// New creates a Collector. A nil cfg uses defaults: one worker per CPU, no
// timeout, no size limit and every extension.
func New(extractor extract.ContentExtractor, cfg *config.IndexConfig, opts ...Option) *Collector {
	c := &Collector{
		extractor: extractor,
		workers:   runtime.NumCPU(),
		logger:    zap.NewNop(),
	}
	if cfg != nil {
		if cfg.Workers > 0 {
			c.workers = cfg.Workers
		}
		c.timeout = cfg.ExtractTimeout
		c.maxSize = cfg.MaxFileSize
		c.extensions = cfg.Extensions
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect extracts every eligible file under root. Per-file problems are
// recorded in Result.Failures and never abort the walk. Cancelling ctx does,
// and then the partial result is discarded.
func (c *Collector) Collect(ctx context.Context, root string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absRoot)
	}

	var (
		mu  sync.Mutex
		res = &Result{}
	)
	fail := func(path string, err error) {
		c.logger.Warn("Skipping file", zap.String("path", path), zap.Error(err))
		mu.Lock()
		res.Failures = append(res.Failures, &extract.ExtractionError{Path: path, Err: err})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	paths := make(chan string, c.workers*4)

	g.Go(func() error {
		defer close(paths)
		return c.walk(gctx, absRoot, paths, fail)
	})
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			for path := range paths {
				if err := gctx.Err(); err != nil {
					return err
				}
				doc, err := c.collectFile(gctx, path)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					fail(path, err)
					continue
				}
				mu.Lock()
				res.Documents = append(res.Documents, doc)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(res.Documents, func(i, j int) bool { return res.Documents[i].Path < res.Documents[j].Path })
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Path < res.Failures[j].Path })
	return res, nil
}

// walk visits directories breadth-first from an explicit queue and sends
// eligible file paths to out.
func (c *Collector) walk(ctx context.Context, root string, out chan<- string, fail func(string, error)) error {
	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			fail(dir, fmt.Errorf("read directory: %w", err))
			continue
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			switch mode := entry.Type(); {
			case mode.IsDir():
				if !c.excluded(path) {
					queue = append(queue, path)
				}
				continue
			case mode&fs.ModeSymlink != 0:
				// Only symlinks to regular files are followed.
				target, err := os.Stat(path)
				if err != nil || !target.Mode().IsRegular() {
					continue
				}
			case !mode.IsRegular():
				continue
			}
			if !c.extensionAllowed(path) {
				continue
			}
			select {
			case out <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (c *Collector) excluded(dir string) bool {
	for _, e := range c.exclude {
		if dir == e {
			return true
		}
	}
	return false
}

func (c *Collector) extensionAllowed(path string) bool {
	if len(c.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, a := range c.extensions {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}

// collectFile reads and extracts one file and assembles its document.
func (c *Collector) collectFile(ctx context.Context, path string) (*models.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if c.maxSize > 0 && info.Size() > c.maxSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, info.Size(), c.maxSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	ex, err := c.extract(ctx, content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, err
	}
	return document.Assemble(path, ex.Text, ex.Metadata), nil
}

type extractResult struct {
	ex  *extract.Extraction
	err error
}

// extract runs the extractor in its own goroutine so a library that ignores
// ctx cannot hold a worker past the deadline.
func (c *Collector) extract(ctx context.Context, content []byte, hint string) (*extract.Extraction, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	done := make(chan extractResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extractResult{err: fmt.Errorf("extractor panic: %v", r)}
			}
		}()
		ex, err := c.extractor.Extract(ctx, content, hint)
		if err == nil && ex == nil {
			err = errors.New("extractor returned no result")
		}
		done <- extractResult{ex: ex, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrExtractTimeout, c.timeout)
		}
		return r.ex, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrExtractTimeout, c.timeout)
		}
		return nil, ctx.Err()
	}
}
