// Package indexer turns a directory tree into a published index generation.
package indexer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/collector"
	"github.com/hyperjump/docsearch/internal/config"
	"github.com/hyperjump/docsearch/internal/extract"
	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/metrics"
	"github.com/hyperjump/docsearch/internal/models"
)

// Indexer collects documents from a directory and builds a new generation from them.
type Indexer struct {
	collector *collector.Collector
	builder   *index.Builder
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build progress and per-file failures.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithMetrics records build outcomes in m.
func WithMetrics(m *metrics.Metrics) IndexerOption {
	return func(idx *Indexer) { idx.metrics = m }
}

// NewIndexer creates an indexer publishing into h. extractor may be nil, in
// which case the default extractor is used.
func NewIndexer(
	h *index.Handle,
	analyzer *analysis.Analyzer,
	extractor extract.ContentExtractor,
	cfg *config.IndexConfig,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(idx)
	}
	if extractor == nil {
		var maxSize int64
		if cfg != nil {
			maxSize = cfg.MaxFileSize
		}
		extractor = extract.NewExtractor(extract.WithMaxUnpackedSize(maxSize))
	}
	idx.collector = collector.New(extractor, cfg,
		collector.WithLogger(idx.logger),
		collector.WithExclude(h.Dir()))
	idx.builder = index.NewBuilder(h, analyzer, index.WithBuilderLogger(idx.logger))
	return idx
}

// IndexDirectory extracts every eligible file under root and publishes the
// result as the new current generation. Files that fail extraction are left
// out and listed in the returned stats; they never fail the build. Any other
// failure is an *index.IndexError and leaves the previous generation active.
func (idx *Indexer) IndexDirectory(ctx context.Context, root string) (*models.IndexStats, error) {
	start := time.Now()
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	stats := &models.IndexStats{BuildID: uuid.New().String(), Root: root}
	logger := idx.logger.With(zap.String("build_id", stats.BuildID))
	logger.Info("Indexing directory", zap.String("root", root))

	res, err := idx.collector.Collect(ctx, root)
	if err != nil {
		err = &index.IndexError{Op: "collect", Path: root, Err: err}
		idx.metrics.ObserveBuild(err, 0, 0, 0, time.Since(start))
		logger.Error("Indexing failed", zap.Error(err))
		return nil, err
	}
	for _, f := range res.Failures {
		stats.Failures = append(stats.Failures, models.FileFailure{Path: f.Path, Reason: f.Err.Error()})
	}
	stats.Failed = len(res.Failures)

	built, err := idx.builder.Build(ctx, res.Documents)
	if err != nil {
		idx.metrics.ObserveBuild(err, 0, 0, stats.Failed, time.Since(start))
		logger.Error("Indexing failed", zap.Error(err))
		return nil, err
	}
	stats.Generation = built.Generation
	stats.Documents = built.Documents
	stats.Terms = built.Terms
	stats.Elapsed = time.Since(start)

	idx.metrics.ObserveBuild(nil, stats.Documents, stats.Terms, stats.Failed, stats.Elapsed)
	logger.Info("Indexing finished",
		zap.String("generation", stats.Generation),
		zap.Int("documents", stats.Documents),
		zap.Int("failed", stats.Failed),
		zap.Duration("elapsed", stats.Elapsed))
	return stats, nil
}
