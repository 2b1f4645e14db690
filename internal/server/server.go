// Package server provides the HTTP API for docsearch.
package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/docsearch/internal/config"
	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/indexer"
	"github.com/hyperjump/docsearch/internal/metrics"
	"github.com/hyperjump/docsearch/internal/search"
)

// Server is the HTTP server for the docsearch API.
type Server struct {
	engine   *search.Engine
	indexer  *indexer.Indexer
	handle   *index.Handle
	config   *config.Config
	metrics  *metrics.Metrics
	logger   *zap.Logger
	server   *http.Server
	building atomic.Bool
}

// NewServer creates a server with the given dependencies. m may be nil, in
// which case /metrics answers 404.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	handle *index.Handle,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:  engine,
		indexer: idx,
		handle:  handle,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Timeout(60*time.Second)).Post("/search", s.handleSearch)
		r.Post("/index", s.handleIndex)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// observe logs each request and records it in metrics under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveHTTP(r.Method, route, status, elapsed)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", elapsed))
	})
}
