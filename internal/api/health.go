package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/fte-dashboard/internal/backend"
	"github.com/go-chi/chi/v5"
)

// DefaultHealthCheckTimeout bounds the backend ping.
const DefaultHealthCheckTimeout = 5 * time.Second

// Pinger checks backend reachability.
type Pinger interface {
	Ping(ctx context.Context) (backend.PingResponse, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	backend Pinger
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. A zero timeout uses
// DefaultHealthCheckTimeout.
func NewHealthHandler(p Pinger, timeout time.Duration, logger *slog.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = DefaultHealthCheckTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{backend: p, timeout: timeout, logger: logger}
}

// Health returns the health status of the dashboard and its backend.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"dashboard": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	pong, err := h.backend.Ping(ctx)
	if err != nil {
		h.logger.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["backend"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
		if pong.Version != "" {
			status["backend_version"] = pong.Version
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
