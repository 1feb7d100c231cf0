package handlers

import (
	"net/http"
	"time"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

type HealthHandler struct {
	startTime time.Time
	connected bool
}

// NewHealthHandler creates a liveness handler. connected reports whether a
// database was configured at startup.
func NewHealthHandler(connected bool) *HealthHandler {
	return &HealthHandler{startTime: time.Now(), connected: connected}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	database := "disconnected"
	if h.connected {
		database = "configured"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
		"uptime":    time.Since(h.startTime).Round(time.Second).String(),
		"database":  database,
	})
}
