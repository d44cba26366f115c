package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	livePositions func() int
}

// NewHealthHandler creates a HealthHandler. livePositions may be nil.
func NewHealthHandler(livePositions func() int) *HealthHandler {
	return &HealthHandler{livePositions: livePositions}
}

// HealthCheck responds with a simple JSON status indicating the process is
// alive and how many positions it is carrying.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	live := 0
	if h.livePositions != nil {
		live = h.livePositions()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"live_positions": live,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
