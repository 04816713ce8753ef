package handlers

import (
	"net/http"
	"time"

	"github.com/hongminglow/chat-be/internal/http/respond"
)

// PresenceCounter reports how many users currently hold a live connection.
type PresenceCounter interface {
	Len() int
}

// HealthHandler returns uptime and basic status.
type HealthHandler struct {
	startedAt time.Time
	presence  PresenceCounter
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, presence PresenceCounter) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, presence: presence}
}

// Register wires the handler into a ServeMux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, "ok", map[string]any{
		"status":       "ok",
		"uptime":       time.Since(h.startedAt).Truncate(time.Second).String(),
		"online_users": h.presence.Len(),
	})
}
