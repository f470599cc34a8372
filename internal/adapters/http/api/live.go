// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/motionlab/stride/internal/app"
	"github.com/motionlab/stride/pkg/logger"
)

const (
	liveWriteTimeout = 5 * time.Second
	livePingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Streaming endpoint for local dashboards; origin policy is left to a
	// fronting proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// LiveHandler streams snapshots to websocket clients as the session worker
// stores them.
type LiveHandler struct {
	svc Service
	log logger.Logger
}

// NewLiveHandler creates a new live-stream handler.
func NewLiveHandler(svc Service) *LiveHandler {
	return &LiveHandler{svc: svc, log: logger.Named("live")}
}

// HandleLive handles GET /sessions/{id}/live requests. Each connected client
// gets its own subscription; slow clients miss intermediate snapshots rather
// than stalling the pipeline.
func (h *LiveHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	feed, cancel, err := h.svc.Subscribe(sessionID)
	if err != nil {
		if errors.Is(err, app.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	// Drain client frames so close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-feed:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(liveWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
