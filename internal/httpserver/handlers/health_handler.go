package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/unsungfields/gateway/internal/httpserver/responses"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the welcome, liveness, and readiness endpoints.
type HealthHandler struct {
	store  Pinger
	logger zerolog.Logger
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(store Pinger, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: logger.With().Str("component", "health-handler").Logger(),
	}
}

// Root greets the caller.
func (h *HealthHandler) Root(c *gin.Context) {
	responses.OK(c, gin.H{"message": "Welcome to Unsungfields AI"})
}

// Healthz reports that the process is serving.
func (h *HealthHandler) Healthz(c *gin.Context) {
	responses.OK(c, gin.H{"status": "ok"})
}

// Readyz reports whether the store is reachable.
func (h *HealthHandler) Readyz(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("store not ready")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	responses.OK(c, gin.H{"status": "ready"})
}
