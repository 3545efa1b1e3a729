package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/hamevo/internal/circuit"
	"github.com/seantiz/hamevo/internal/definition"
	"github.com/seantiz/hamevo/internal/engine"
	"github.com/seantiz/hamevo/internal/evolution"
	"github.com/seantiz/hamevo/internal/model"
	"github.com/seantiz/hamevo/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// createRunRequest is the JSON body for POST /v1/runs and /v1/circuits.
// Definition is decoded strictly by the definition package.
type createRunRequest struct {
	Definition json.RawMessage `json:"definition"`
	TimeoutS   int             `json:"timeout_s"`
}

// listRunsResponse wraps the paginated list response.
type listRunsResponse struct {
	Runs   []*model.Run `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// errorResponse is the JSON body of every error. Field is set when a single
// evolution parameter was rejected.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// decodeDefinition reads the request body and parses the embedded document.
// It writes the error response itself and reports false on failure.
func (s *Server) decodeDefinition(w http.ResponseWriter, r *http.Request) (*definition.Document, int, bool) {
	var req createRunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, 0, false
	}
	if len(req.Definition) == 0 || string(req.Definition) == "null" {
		s.writeError(w, http.StatusBadRequest, "definition is required")
		return nil, 0, false
	}
	if req.TimeoutS < 0 {
		s.writeError(w, http.StatusBadRequest, "timeout_s must not be negative")
		return nil, 0, false
	}

	doc, err := definition.ParseJSON(req.Definition)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, 0, false
	}
	return doc, req.TimeoutS, true
}

// writeRunError maps engine and store errors onto HTTP status codes.
func (s *Server) writeRunError(w http.ResponseWriter, op string, err error) {
	var invalid *evolution.InvalidParameterError
	var rejected *definition.FieldError
	switch {
	case errors.As(err, &invalid):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error(), Field: invalid.Field})
	case errors.As(err, &rejected):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: rejected.Error(), Field: rejected.Field})
	case errors.Is(err, definition.ErrInvalidDocument),
		errors.Is(err, engine.ErrUnknownBackend),
		errors.Is(err, circuit.ErrWidthMismatch):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrThrottled):
		w.Header().Set("Retry-After", "1")
		s.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, store.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(op, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	doc, timeoutS, ok := s.decodeDefinition(w, r)
	if !ok {
		return
	}

	run, err := s.engine.Run(r.Context(), doc, timeoutS)
	if err != nil {
		s.writeRunError(w, "create run", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleAsyncRun(w http.ResponseWriter, r *http.Request) {
	doc, timeoutS, ok := s.decodeDefinition(w, r)
	if !ok {
		return
	}

	run, err := s.engine.Submit(r.Context(), doc, timeoutS)
	if err != nil {
		s.writeRunError(w, "submit run", err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.writeRunError(w, "get run", err)
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	if runs == nil {
		runs = []*model.Run{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleKillRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.engine.Kill(r.Context(), id)
	if err != nil {
		s.writeRunError(w, "kill run", err)
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
