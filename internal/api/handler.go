// Package api provides HTTP handlers for the dashboard process.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/fte-dashboard/internal/dashboard"
	"github.com/go-chi/chi/v5"
)

// StateSource returns the current dashboard state.
type StateSource interface {
	Snapshot() dashboard.State
}

// Refresher runs every poll once, on demand.
type Refresher interface {
	RefreshNow(ctx context.Context) error
}

// Handler serves the /ui routes.
type Handler struct {
	state     StateSource
	refresher Refresher
	logger    *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(state StateSource, refresher Refresher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{state: state, refresher: refresher, logger: logger}
}

// RegisterRoutes registers the /ui routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ui", func(r chi.Router) {
		r.Get("/state", h.State)
		r.Post("/refresh", h.Refresh)
	})
}

// State returns a snapshot of every region.
func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.state.Snapshot())
}

// Refresh runs the stats, task and log polls once and returns the
// resulting state. Failed polls leave their region stale and are reported
// under "errors".
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if err := h.refresher.RefreshNow(r.Context()); err != nil {
		h.logger.Warn("Manual refresh incomplete", "error", err)
		resp["status"] = "partial"
		resp["errors"] = err.Error()
	}
	resp["state"] = h.state.Snapshot()
	JSON(w, http.StatusOK, resp)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
