// Package search runs ranked keyword queries against the current index generation.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/config"
	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/metrics"
	"github.com/hyperjump/docsearch/internal/models"
	"github.com/hyperjump/docsearch/internal/query"
	"github.com/hyperjump/docsearch/internal/storage"
	"github.com/hyperjump/docsearch/internal/suggest"
)

// Search outcomes reported to metrics.
const (
	outcomeOK          = "ok"
	outcomeEmpty       = "empty"
	outcomeSyntax      = "syntax_error"
	outcomeInvalid     = "invalid"
	outcomeNoIndex     = "no_index"
	outcomeConsistency = "consistency_error"
	outcomeError       = "error"
)

// GenerationSource hands out the current generation. *index.Handle implements it.
type GenerationSource interface {
	Acquire() (*index.Generation, error)
}

// window is the ranked head of a query's matches in one generation.
type window struct {
	hits  []candidate
	total int
}

// complete reports whether the window holds every match.
func (w *window) complete() bool { return len(w.hits) == w.total }

// Engine runs keyword search.
type Engine struct {
	source    GenerationSource
	analyzer  *analysis.Analyzer
	config    *config.SearchConfig
	cache     *lru.Cache[string, *window]
	suggester *suggest.Suggester
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records search outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a search engine over source. The analyzer must be the one
// the index was built with.
func NewEngine(source GenerationSource, analyzer *analysis.Analyzer, cfg *config.SearchConfig, opts ...Option) (*Engine, error) {
	e := &Engine{
		source:   source,
		analyzer: analyzer,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, *window](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create window cache: %w", err)
		}
		e.cache = cache
	}
	if cfg.SuggestDistance > 0 {
		e.suggester = suggest.New(analyzer, suggest.WithMaxDistance(cfg.SuggestDistance))
	}
	return e, nil
}

// Search parses req.Query, ranks the matches by BM25 score (ties by document
// id) and returns the page [offset, offset+limit). An offset past the last
// match yields an empty page. Query syntax errors are returned as
// *query.SyntaxError with no hits.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	if req.Offset < 0 {
		e.metrics.ObserveSearchError(outcomeInvalid)
		return nil, fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidRequest, req.Offset)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if e.config.MaxLimit > 0 && limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}

	node, err := query.Parse(req.Query)
	if err != nil {
		e.metrics.ObserveSearchError(outcomeSyntax)
		return nil, err
	}

	gen, err := e.source.Acquire()
	if err != nil {
		if errors.Is(err, index.ErrNoGeneration) {
			e.metrics.ObserveSearchError(outcomeNoIndex)
		} else {
			e.metrics.ObserveSearchError(outcomeError)
		}
		return nil, err
	}
	defer gen.Release()

	resp := &models.SearchResponse{
		Hits:       []*models.SearchHit{},
		Offset:     req.Offset,
		Limit:      limit,
		Generation: gen.ID(),
		Query:      node.String(),
	}

	p := compile(node, e.analyzer)
	if p == nil {
		// Nothing searchable survived analysis.
		resp.QueryTime = time.Since(start).Milliseconds()
		e.metrics.ObserveSearch(outcomeEmpty, false, 0, time.Since(start))
		return resp, nil
	}

	w, cached, err := e.window(ctx, gen, p, req.Offset, limit)
	if err != nil {
		e.metrics.ObserveSearchError(outcomeError)
		return nil, err
	}
	resp.Total = w.total
	if resp.Total == 0 && e.suggester != nil {
		if fixed, ok := e.suggester.Correct(gen, node); ok {
			resp.Suggestion = query.Format(fixed)
		}
	}

	if req.Offset < len(w.hits) {
		end := min(req.Offset+limit, len(w.hits))
		for i, c := range w.hits[req.Offset:end] {
			doc, err := gen.StoredFields(ctx, c.id)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					e.metrics.ObserveSearchError(outcomeConsistency)
					e.logger.Error("Matched document has no stored fields",
						zap.String("generation", gen.ID()),
						zap.Uint32("doc_id", c.id))
					return nil, &ConsistencyError{Generation: gen.ID(), DocID: c.id, Err: err}
				}
				e.metrics.ObserveSearchError(outcomeError)
				return nil, fmt.Errorf("failed to load document %d: %w", c.id, err)
			}
			resp.Hits = append(resp.Hits, &models.SearchHit{
				Path:   doc.Path,
				Fields: doc.Fields,
				Score:  c.score,
				DocID:  c.id,
				Rank:   req.Offset + i + 1,
			})
		}
	}

	elapsed := time.Since(start)
	resp.QueryTime = elapsed.Milliseconds()
	outcome := outcomeOK
	if resp.Total == 0 {
		outcome = outcomeEmpty
	}
	e.metrics.ObserveSearch(outcome, cached, resp.Total, elapsed)
	e.logger.Debug("Search completed",
		zap.String("query", resp.Query),
		zap.String("generation", resp.Generation),
		zap.Int("total", resp.Total),
		zap.Int("hits", len(resp.Hits)),
		zap.Bool("cached", cached),
		zap.Duration("elapsed", elapsed))
	return resp, nil
}

// window returns at least offset+limit ranked candidates of p, or all of them
// when fewer match. Windows are cached per generation and grown on demand.
func (e *Engine) window(ctx context.Context, gen *index.Generation, p plan, offset, limit int) (*window, bool, error) {
	need := offset + limit
	key := gen.ID() + "\x00" + p.String()
	if e.cache != nil {
		if w, ok := e.cache.Get(key); ok && (w.complete() || len(w.hits) >= need) {
			return w, true, nil
		}
	}

	matches, err := p.eval(ctx, gen)
	if err != nil {
		return nil, false, err
	}
	w := &window{
		hits:  topK(matches, e.windowSize(offset, limit)),
		total: len(matches),
	}
	if e.cache != nil {
		e.cache.Add(key, w)
	}
	return w, false, nil
}

// windowSize is the over-fetched candidate count for a page. It always
// covers at least one page past the requested one.
func (e *Engine) windowSize(offset, limit int) int {
	factor := max(e.config.OverFetchFactor, 1)
	return max((offset+limit)*factor, offset+2*limit)
}
