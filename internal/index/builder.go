package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/models"
	"github.com/hyperjump/docsearch/internal/storage"
)

// BuildResult describes a published generation.
type BuildResult struct {
	Generation string
	Documents  int
	Terms      int
	Elapsed    time.Duration
}

// Builder turns documents into a new generation of a Handle's directory.
type Builder struct {
	handle   *Handle
	analyzer *analysis.Analyzer
	logger   *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderLogger sets the logger for the builder.
func WithBuilderLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder returns a Builder publishing into h.
func NewBuilder(h *Handle, analyzer *analysis.Analyzer, opts ...BuilderOption) *Builder {
	b := &Builder{handle: h, analyzer: analyzer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build replaces the active generation with one built from docs. Documents
// are ordered by path and given ids 0..N-1; their ID fields are overwritten.
// Paths must be unique.
//
// Builds in the same process run one at a time. If another process holds
// the directory's write lock, Build fails with ErrBuildInProgress. On any
// failure the temporary generation is removed and the previous generation
// stays active.
func (b *Builder) Build(ctx context.Context, docs []*models.Document) (*BuildResult, error) {
	start := time.Now()
	h := b.handle
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	lock := NewFileLock(h.dir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, &IndexError{Op: "lock", Path: lock.Path(), Err: err}
	}
	if !acquired {
		return nil, &IndexError{Op: "lock", Path: lock.Path(), Err: ErrBuildInProgress}
	}
	defer lock.Unlock()

	seq, err := h.cleanup()
	if err != nil {
		return nil, &IndexError{Op: "cleanup", Path: h.dir, Err: err}
	}
	name := GenerationName(seq)
	finalDir := filepath.Join(h.dir, name)
	tmpDir := finalDir + tmpSuffix

	published := false
	defer func() {
		if !published {
			os.RemoveAll(tmpDir)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, &IndexError{Op: "build", Path: tmpDir, Err: err}
	}
	if err := os.Mkdir(tmpDir, 0755); err != nil {
		return nil, &IndexError{Op: "build", Path: tmpDir, Err: err}
	}

	sorted, err := assignIDs(docs)
	if err != nil {
		return nil, &IndexError{Op: "build", Path: tmpDir, Err: err}
	}

	mem := NewMemoryIndex(b.analyzer, len(sorted))
	for _, doc := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, &IndexError{Op: "build", Path: tmpDir, Err: err}
		}
		mem.AddDocument(doc)
	}
	if err := checkCoverage(mem); err != nil {
		return nil, &IndexError{Op: "build", Path: tmpDir, Err: err}
	}

	header, err := WriteSegment(filepath.Join(tmpDir, SegmentFileName), mem)
	if err != nil {
		return nil, &IndexError{Op: "write segment", Path: tmpDir, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &IndexError{Op: "build", Path: tmpDir, Err: err}
	}
	if err := writeStore(ctx, filepath.Join(tmpDir, StoreFileName), sorted); err != nil {
		return nil, &IndexError{Op: "write store", Path: tmpDir, Err: err}
	}
	if err := syncDir(tmpDir); err != nil {
		return nil, &IndexError{Op: "build", Path: tmpDir, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &IndexError{Op: "build", Path: tmpDir, Err: err}
	}

	if err := os.Rename(tmpDir, finalDir); err != nil {
		return nil, &IndexError{Op: "rename", Path: tmpDir, Err: err}
	}
	gen, err := openGeneration(finalDir)
	if err != nil {
		os.RemoveAll(finalDir)
		return nil, &IndexError{Op: "open", Path: finalDir, Err: err}
	}
	if err := h.publish(gen); err != nil {
		gen.Release()
		os.RemoveAll(finalDir)
		return nil, &IndexError{Op: "publish", Path: finalDir, Err: err}
	}
	published = true

	res := &BuildResult{
		Generation: name,
		Documents:  len(sorted),
		Terms:      int(header.TermCount),
		Elapsed:    time.Since(start),
	}
	b.logger.Info("Published index generation",
		zap.String("generation", name),
		zap.Int("documents", res.Documents),
		zap.Int("terms", res.Terms),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// assignIDs sorts a copy of docs by path and numbers them from zero.
func assignIDs(docs []*models.Document) ([]*models.Document, error) {
	sorted := make([]*models.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	for i, doc := range sorted {
		if doc.Path == "" {
			return nil, fmt.Errorf("document without path")
		}
		if i > 0 && sorted[i-1].Path == doc.Path {
			return nil, fmt.Errorf("duplicate document path %q", doc.Path)
		}
		doc.ID = uint32(i)
	}
	return sorted, nil
}

// checkCoverage verifies every document is reachable through path or body postings.
func checkCoverage(mem *MemoryIndex) error {
	seen := mem.IndexedDocs(models.FieldPath, models.FieldBody)
	if len(seen) != mem.DocCount() {
		return fmt.Errorf("%d of %d documents have no path or body postings", mem.DocCount()-len(seen), mem.DocCount())
	}
	return nil
}

func writeStore(ctx context.Context, path string, docs []*models.Document) error {
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	if err := store.PutDocuments(ctx, docs); err != nil {
		store.Close()
		return err
	}
	return store.Close()
}
