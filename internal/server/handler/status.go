package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves the static runtime settings operators most often ask
// about.
type StatusHandler struct {
	Wallet    string
	BaseToken string
	Router    string
	Averaging string
	StartedAt time.Time
}

// GetStatus responds with the wallet, trading venue and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":         h.Wallet,
		"base_token":     h.BaseToken,
		"router":         h.Router,
		"averaging":      h.Averaging,
		"started_at":     h.StartedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
