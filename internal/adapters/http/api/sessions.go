// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/motionlab/stride/internal/app"
)

// SessionsHandler handles session lifecycle and read requests.
type SessionsHandler struct {
	svc      Service
	maxLimit int
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(svc Service, maxLimit int) *SessionsHandler {
	return &SessionsHandler{svc: svc, maxLimit: maxLimit}
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// HandleCreate handles POST /sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	id, err := h.svc.CreateSession(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: id})
}

// HandleEnd handles DELETE /sessions/{id} requests, returning the final
// snapshot of the drained session.
func (h *SessionsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	const op = "api.end_session"
	snap, err := h.svc.EndSession(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, app.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleList handles GET /sessions?limit=N requests: the fall-risk ranked
// session listing.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_sessions"
	limitStr := r.URL.Query().Get("limit")
	n := h.maxLimit
	if limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	entries, err := h.svc.TopN(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleMetrics handles GET /sessions/{id}/metrics requests.
func (h *SessionsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_metrics"
	snap, err := h.svc.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, app.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleRank handles GET /sessions/{id}/rank requests.
func (h *SessionsHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	entry, err := h.svc.Rank(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, app.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
