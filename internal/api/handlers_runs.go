package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/coindata-pipeline/internal/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// RunListResponse is the payload for the run list endpoint
type RunListResponse struct {
	Runs   []*types.Run `json:"runs"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// handleListRuns returns run history, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
			"limit must be between 1 and 500", nil)
		return
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
			"offset must not be negative", nil)
		return
	}

	runs, err := s.runs.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to list runs", nil)
		return
	}
	if runs == nil {
		runs = []*types.Run{}
	}

	respondJSON(w, http.StatusOK, RunListResponse{
		Runs:   runs,
		Limit:  limit,
		Offset: offset,
	})
}

// handleLatestRun returns the most recently started run
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Latest(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to fetch latest run", nil)
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "no runs recorded yet", nil)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// handleGetRun returns one run by ID
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := s.runs.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to fetch run", nil)
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "run not found", map[string]interface{}{
			"id": id,
		})
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
