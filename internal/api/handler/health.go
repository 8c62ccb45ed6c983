package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mystari/mystari-api/internal/api/apierr"
	"github.com/mystari/mystari-api/internal/api/response"
)

// Pinger checks that a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the store is reachable
type HealthHandler struct {
	store  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// Get handles GET /api/health
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", slog.String("error", err.Error()))
		WriteError(w, apierr.NewUnavailableError())
		return
	}
	response.JSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}
