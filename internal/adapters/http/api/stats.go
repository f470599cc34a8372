// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
)

// StatsHandler handles stats requests.
type StatsHandler struct {
	stats StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(h.stats.GetStats(r.Context()))
}
