package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports the number of live sessions.
type SessionCounter interface {
	Len() int
}

// DatasetStats reports record counts of the loaded dataset.
type DatasetStats interface {
	Stats() map[string]int
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	archive  Pinger
	sessions SessionCounter
	data     DatasetStats
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler. archive may be nil when
// turn archiving is disabled.
func NewHealthHandler(archive Pinger, sessions SessionCounter, data DatasetStats) *HealthHandler {
	return &HealthHandler{
		archive:  archive,
		sessions: sessions,
		data:     data,
		timeout:  5 * time.Second,
	}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status":   "healthy",
		"checks":   checks,
		"sessions": h.sessions.Len(),
		"dataset":  h.data.Stats(),
	}
	statusCode := http.StatusOK

	switch {
	case h.archive == nil:
		checks["archive"] = "disabled"
	case h.archive.Ping(ctx) != nil:
		slog.Error("Health check failed", "check", "archive")
		status["status"] = "degraded"
		checks["archive"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	default:
		checks["archive"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
