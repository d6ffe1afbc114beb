package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pathrpg/engine/internal/storage"
)

// HealthResponse reports overall service health and per-component detail.
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

// HealthHandler checks the storage backends.
type HealthHandler struct {
	sessions storage.HealthChecker
	db       storage.HealthChecker
	logger   *slog.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(sessions, db storage.HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		sessions: sessions,
		db:       db,
		logger:   logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string)
	overallStatus := "healthy"

	if err := h.sessions.Ping(ctx); err != nil {
		h.logger.Warn("Session store health check failed", "error", err)
		components["sessions"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["sessions"] = "healthy"
	}

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Database health check failed", "error", err)
		components["database"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["database"] = "healthy"
	}

	status := http.StatusOK
	if overallStatus != "healthy" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, h.logger, status, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "pathrpg-api",
		Components: components,
	})
}
