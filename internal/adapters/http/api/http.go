// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/motionlab/stride/internal/adapters/mq/queue"
	"github.com/motionlab/stride/internal/domain/model"
	"github.com/motionlab/stride/internal/domain/types"
)

// Service bundles the application operations the handlers need. Using an
// interface bundle keeps the handler layer loosely coupled to the app
// package.
type Service interface {
	CreateSession(ctx context.Context) (string, error)
	EndSession(ctx context.Context, sessionID string) (types.Snapshot, error)

	EnqueueFrames(ctx context.Context, sessionID, batchID string, frames []model.JointFrame) error
	EnqueueIMU(ctx context.Context, sessionID, batchID string, samples []model.IMUSample, externalSteps []float64) error
	Control(ctx context.Context, sessionID string, op queue.ControlOp) (any, error)

	Snapshot(ctx context.Context, sessionID string) (types.Snapshot, error)
	TopN(ctx context.Context, n int) ([]types.SessionEntry, error)
	Rank(ctx context.Context, sessionID string) (types.SessionEntry, error)
	Subscribe(sessionID string) (<-chan types.Snapshot, func(), error)
}

// StatsProvider exposes service-level counters for GET /stats.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// Server wires HTTP routes for the capture API.
type Server struct {
	sessionsHandler *SessionsHandler
	ingestHandler   *IngestHandler
	controlHandler  *ControlHandler
	liveHandler     *LiveHandler
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(svc Service, stats StatsProvider, maxListLimit int) *Server {
	return &Server{
		sessionsHandler: NewSessionsHandler(svc, maxListLimit),
		ingestHandler:   NewIngestHandler(svc),
		controlHandler:  NewControlHandler(svc),
		liveHandler:     NewLiveHandler(svc),
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(stats),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /sessions", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions"))
	mux.HandleFunc("GET /sessions", MetricsMiddleware(s.sessionsHandler.HandleList, "sessions"))
	mux.HandleFunc("DELETE /sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleEnd, "sessions"))
	mux.HandleFunc("GET /sessions/{id}/metrics", MetricsMiddleware(s.sessionsHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /sessions/{id}/rank", MetricsMiddleware(s.sessionsHandler.HandleRank, "rank"))

	mux.HandleFunc("POST /sessions/{id}/frames", MetricsMiddleware(s.ingestHandler.HandleFrames, "frames"))
	mux.HandleFunc("POST /sessions/{id}/imu", MetricsMiddleware(s.ingestHandler.HandleIMU, "imu"))

	mux.HandleFunc("POST /sessions/{id}/romberg", MetricsMiddleware(s.controlHandler.HandleRomberg, "romberg"))
	mux.HandleFunc("POST /sessions/{id}/reset", MetricsMiddleware(s.controlHandler.HandleReset, "reset"))

	mux.HandleFunc("GET /sessions/{id}/live", s.liveHandler.HandleLive)
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
