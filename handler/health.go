package handler

import (
	"net/http"
	"time"

	"github.com/ecomkit/cyberpay/infra/response"
)

var startTime = time.Now()

// HealthHandler reports service health.
type HealthHandler struct {
	environment string
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(environment string) *HealthHandler {
	return &HealthHandler{environment: environment}
}

// Health answers liveness probes.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "Service is healthy", map[string]any{
		"status":         "healthy",
		"environment":    h.environment,
		"uptime_seconds": int64(time.Since(startTime).Seconds()),
	})
}
