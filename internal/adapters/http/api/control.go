// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/motionlab/stride/internal/adapters/mq/queue"
	"github.com/motionlab/stride/internal/app"
	"github.com/motionlab/stride/internal/domain/balance"
)

// Romberg actions accepted by POST /sessions/{id}/romberg.
const (
	actionStartEyesOpen   = "start_eyes_open"
	actionStartEyesClosed = "start_eyes_closed"
	actionComplete        = "complete"
)

// ControlHandler handles serialized session commands.
type ControlHandler struct {
	svc Service
}

// NewControlHandler creates a new control handler.
func NewControlHandler(svc Service) *ControlHandler {
	return &ControlHandler{svc: svc}
}

type rombergRequest struct {
	Action string `json:"action"`
}

type controlResponse struct {
	Status  string                 `json:"status"`
	Romberg *balance.RombergResult `json:"romberg,omitempty"`
}

// HandleRomberg handles POST /sessions/{id}/romberg requests. Commands are
// serialized through the session's sample queue, so a phase transition
// observes every sample enqueued before it.
func (h *ControlHandler) HandleRomberg(w http.ResponseWriter, r *http.Request) {
	const op = "api.romberg"
	var req rombergRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	var ctl queue.ControlOp
	switch req.Action {
	case actionStartEyesOpen:
		ctl = queue.ControlStartEyesOpen
	case actionStartEyesClosed:
		ctl = queue.ControlStartEyesClosed
	case actionComplete:
		ctl = queue.ControlCompleteRomberg
	default:
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	res, err := h.svc.Control(r.Context(), r.PathValue("id"), ctl)
	if err != nil {
		h.writeControlError(w, op, err)
		return
	}
	resp := controlResponse{Status: "ok"}
	if romberg, ok := res.(*balance.RombergResult); ok {
		resp.Romberg = romberg
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleReset handles POST /sessions/{id}/reset requests.
func (h *ControlHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset"
	if _, err := h.svc.Control(r.Context(), r.PathValue("id"), queue.ControlReset); err != nil {
		h.writeControlError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, controlResponse{Status: "ok"})
}

func (h *ControlHandler) writeControlError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, app.ErrNotStanding), errors.Is(err, app.ErrRombergIncomplete):
		writeError(w, http.StatusConflict, "precondition_failed", err)
	case errors.Is(err, app.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
