// Package health serves the liveness endpoint.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const checkTimeout = 3 * time.Second

// Check pings one dependency.
type Check func(ctx context.Context) error

// Handler reports store reachability and, when configured, the Redis relay.
type Handler struct {
	store  Check
	redis  Check
	logger *zap.Logger
}

// NewHandler creates a health handler. redis may be nil.
func NewHandler(store, redis Check, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, redis: redis, logger: logger}
}

// Get handles GET /health.
func (h *Handler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  "connected",
	}
	status := http.StatusOK

	if err := h.store(ctx); err != nil {
		h.logger.Warn("health: store unreachable", zap.Error(err))
		body["status"] = "degraded"
		body["database"] = "disconnected"
		body["error"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		if err := h.redis(ctx); err != nil {
			h.logger.Warn("health: redis unreachable", zap.Error(err))
			body["status"] = "degraded"
			body["redis"] = "disconnected"
			if _, ok := body["error"]; !ok {
				body["error"] = err.Error()
			}
			status = http.StatusServiceUnavailable
		} else {
			body["redis"] = "connected"
		}
	}
	c.JSON(status, body)
}
