package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/pmagent/internal/contextstore"
	"github.com/hyperjump/pmagent/internal/feedback"
	"github.com/hyperjump/pmagent/internal/llm"
	"github.com/hyperjump/pmagent/internal/models"
	"github.com/hyperjump/pmagent/internal/retrieval"
	"github.com/hyperjump/pmagent/internal/storage"
)

// nonNull dereferences JSON string entries; a null entry is invalid input.
func nonNull(field string, entries []*string) ([]string, error) {
	out := make([]string, len(entries))
	for i, e := range entries {
		if e == nil {
			return nil, fmt.Errorf("%w: %s[%d] is null", contextstore.ErrInvalidInput, field, i)
		}
		out[i] = *e
	}
	return out, nil
}

func (s *Server) handleAddContext(w http.ResponseWriter, r *http.Request) {
	var entries []*string
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: expected a JSON array of strings")
		return
	}
	texts, err := nonNull("texts", entries)
	if err != nil {
		s.fail(w, "add context", err)
		return
	}
	s.logger.Debug("add context request", zap.Int("count", len(texts)))
	if err := s.retriever.AddContext(r.Context(), texts); err != nil {
		s.fail(w, "add context", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"status": "ok", "count": len(texts)})
}

func (s *Server) handleRetrieveContext(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	items, err := nonNull("items", req.Items)
	if err != nil {
		s.fail(w, "retrieve context", err)
		return
	}
	retriever := s.retriever
	if req.K > 0 {
		retriever = retrieval.NewFromStore(s.store, retrieval.WithTopK(req.K), retrieval.WithLogger(s.logger))
	}
	blob, err := retriever.RetrieveContext(r.Context(), items)
	if err != nil {
		s.fail(w, "retrieve context", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.RetrieveResponse{Context: blob, Items: len(items)})
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	k := s.retriever.TopK()
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		k = n
	}
	matches, err := s.store.QueryNearest(r.Context(), q, k)
	if err != nil {
		s.fail(w, "nearest query", err)
		return
	}
	out := make([]models.NearestMatch, len(matches))
	for i, m := range matches {
		out[i] = models.NearestMatch{ID: m.ID, Content: m.Content, Distance: m.Distance}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"matches": out})
}

func (s *Server) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		s.respondError(w, http.StatusNotImplemented, "feedback not enabled")
		return
	}
	var fb models.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.feedback.Store(r.Context(), &fb); err != nil {
		s.fail(w, "store feedback", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": fb.ID, "status": "stored"})
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		s.respondError(w, http.StatusNotImplemented, "feedback not enabled")
		return
	}
	query := r.URL.Query()
	limit, err := intParam(query.Get("limit"), feedback.DefaultLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	var items []*models.Feedback
	if q := query.Get("q"); q != "" {
		minRating, err := intParam(query.Get("min_rating"), 0)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "min_rating must be an integer")
			return
		}
		items, err = s.feedback.Search(r.Context(), q, limit, feedback.SearchOptions{
			Agent:     query.Get("agent"),
			MinRating: minRating,
		})
		if err != nil {
			s.fail(w, "search feedback", err)
			return
		}
	} else {
		offset, err := intParam(query.Get("offset"), 0)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		items, err = s.feedback.List(r.Context(), offset, limit)
		if err != nil {
			s.fail(w, "list feedback", err)
			return
		}
	}
	if items == nil {
		items = []*models.Feedback{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"feedback": items})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"collection":       s.store.Name(),
		"documents":        s.store.Len(),
		"duplicate_policy": string(s.store.Policy()),
		"top_k":            s.retriever.TopK(),
	}
	if s.agents != nil {
		resp["agent_memory"] = s.agents.Memory().Counts()
	}
	if s.feedback != nil {
		n, err := s.feedback.Count(ctx)
		if err != nil {
			s.logger.Error("status: count feedback failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["feedback"] = n
	}
	if s.watch != nil {
		resp["watched_directories"] = s.watch.Directories()
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"llm_model":            s.config.LLM.Model,
			"capacity":             s.config.Context.Capacity,
			"database_path":        s.config.Storage.DatabasePath,
			"snapshot_path":        s.config.Storage.SnapshotPath,
		}
		paths := append(storage.DatabaseFiles(s.config.Storage.DatabasePath),
			s.config.Storage.SnapshotPath,
			s.config.Storage.FeedbackIndexPath)
		diskBytes, err := storage.DiskUsageBytes(paths...)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, contextstore.ErrInvalidInput), errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, contextstore.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, contextstore.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrCompletionFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
