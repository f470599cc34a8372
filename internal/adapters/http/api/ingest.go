// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/motionlab/stride/internal/app"
	"github.com/motionlab/stride/internal/domain/model"
)

// IngestHandler handles sample batch ingestion.
type IngestHandler struct {
	svc Service
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(svc Service) *IngestHandler {
	return &IngestHandler{svc: svc}
}

// frameBatchRequest mirrors the ingest schema for POST /sessions/{id}/frames.
// BatchID is optional; when present it makes the batch idempotent.
type frameBatchRequest struct {
	BatchID string      `json:"batch_id"`
	Frames  []frameWire `json:"frames"`
}

// frameWire is the over-the-wire frame: identical to model.JointFrame except
// that the timestamp also accepts RFC3339 strings.
type frameWire struct {
	Timestamp sampleTime                 `json:"timestamp"`
	Joints    map[model.Joint]model.Vec3 `json:"joints"`
}

// imuBatchRequest mirrors the ingest schema for POST /sessions/{id}/imu.
// ExternalSteps optionally carries step timestamps the sensor collaborator
// detected on-device, to be validated against the acceleration trace.
type imuBatchRequest struct {
	BatchID       string       `json:"batch_id"`
	Samples       []sampleWire `json:"samples"`
	ExternalSteps []sampleTime `json:"external_steps"`
}

// sampleWire is the over-the-wire inertial sample with the dual-format
// timestamp.
type sampleWire struct {
	Timestamp    sampleTime `json:"timestamp"`
	UserAccel    model.Vec3 `json:"user_accel"`
	RotationRate model.Vec3 `json:"rotation_rate"`
	Yaw          float64    `json:"yaw"`
	Roll         float64    `json:"roll"`
	Pitch        float64    `json:"pitch"`
}

// HandleFrames handles POST /sessions/{id}/frames requests.
func (h *IngestHandler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_frames"
	var req frameBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	frames := make([]model.JointFrame, 0, len(req.Frames))
	for _, f := range req.Frames {
		frames = append(frames, model.JointFrame{Timestamp: f.Timestamp.Seconds(), Joints: f.Joints})
	}
	err := h.svc.EnqueueFrames(r.Context(), r.PathValue("id"), req.BatchID, frames)
	h.writeIngestResult(w, op, err)
}

// HandleIMU handles POST /sessions/{id}/imu requests.
func (h *IngestHandler) HandleIMU(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_imu"
	var req imuBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	samples := make([]model.IMUSample, 0, len(req.Samples))
	for _, s := range req.Samples {
		samples = append(samples, model.IMUSample{
			Timestamp:    s.Timestamp.Seconds(),
			UserAccel:    s.UserAccel,
			RotationRate: s.RotationRate,
			Yaw:          s.Yaw,
			Roll:         s.Roll,
			Pitch:        s.Pitch,
		})
	}
	steps := make([]float64, 0, len(req.ExternalSteps))
	for _, t := range req.ExternalSteps {
		steps = append(steps, t.Seconds())
	}
	err := h.svc.EnqueueIMU(r.Context(), r.PathValue("id"), req.BatchID, samples, steps)
	h.writeIngestResult(w, op, err)
}

// writeIngestResult maps service outcomes to the ingest ack contract: a
// replayed batch is acknowledged as a duplicate, backpressure asks the
// client to retry.
func (h *IngestHandler) writeIngestResult(w http.ResponseWriter, op string, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
	case errors.Is(err, app.ErrDuplicateBatch):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
	case errors.Is(err, app.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, app.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, app.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
