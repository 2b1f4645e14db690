package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/models"
	"github.com/hyperjump/docsearch/internal/query"
	"github.com/hyperjump/docsearch/internal/search"
	"github.com/hyperjump/docsearch/internal/storage"
)

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error    string `json:"error"`
	Token    string `json:"token,omitempty"`
	Position *int   `json:"position,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("limit", req.Limit), zap.Int("offset", req.Offset))
	resp, err := s.engine.Search(r.Context(), &req)
	if err != nil {
		var syn *query.SyntaxError
		switch {
		case errors.As(err, &syn):
			pos := syn.Pos
			s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Token: syn.Token, Position: &pos})
		case errors.Is(err, search.ErrInvalidRequest):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, index.ErrNoGeneration):
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.logger.Error("search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type indexRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	root := req.Path
	if root == "" {
		root = s.config.Index.Root
	}
	if root == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	if !s.building.CompareAndSwap(false, true) {
		s.respondError(w, http.StatusConflict, index.ErrBuildInProgress.Error())
		return
	}
	defer s.building.Store(false)

	s.logger.Info("index request", zap.String("root", root))
	stats, err := s.indexer.IndexDirectory(r.Context(), root)
	if err != nil {
		if errors.Is(err, index.ErrBuildInProgress) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"index_path": s.handle.Dir(),
		"root":       s.config.Index.Root,
		"building":   s.building.Load(),
	}
	gen, err := s.handle.Acquire()
	switch {
	case errors.Is(err, index.ErrNoGeneration):
		resp["generation"] = nil
	case err != nil:
		s.logger.Error("status: acquire generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	default:
		defer gen.Release()
		resp["generation"] = gen.ID()
		resp["documents"] = gen.DocCount()
		resp["terms"] = gen.TermCount()
		resp["created_at"] = gen.CreatedAt()
	}
	if bytes, err := storage.DiskUsageBytes(s.handle.Dir()); err == nil {
		resp["disk_usage_bytes"] = bytes
	}
	resp["config"] = map[string]interface{}{
		"workers":           s.config.Index.Workers,
		"extract_timeout":   s.config.Index.ExtractTimeout.String(),
		"max_file_size":     s.config.Index.MaxFileSize,
		"default_limit":     s.config.Search.DefaultLimit,
		"max_limit":         s.config.Search.MaxLimit,
		"over_fetch_factor": s.config.Search.OverFetchFactor,
		"suggest_distance":  s.config.Search.SuggestDistance,
		"watch_enabled":     s.config.Watch.Enabled,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}
