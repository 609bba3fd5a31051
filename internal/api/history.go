package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spherical/ghostview/internal/observability"
	"github.com/spherical/ghostview/internal/storage"
)

// HistoryHandler serves persisted job results.
type HistoryHandler struct {
	logger  *observability.Logger
	history History
}

// NewHistoryHandler creates a new history handler. history may be nil.
func NewHistoryHandler(logger *observability.Logger, history History) *HistoryHandler {
	return &HistoryHandler{logger: logger, history: history}
}

// List handles GET /v1/history?limit=N.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "job history is not configured", nil)
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	entries, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list job history")
		writeError(w, http.StatusInternalServerError, "failed to list history", err)
		return
	}
	if entries == nil {
		entries = []storage.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Get handles GET /v1/history/{jobID}.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "job history is not configured", nil)
		return
	}
	entry, err := h.history.GetByJobID(r.Context(), chi.URLParam(r, "jobID"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
