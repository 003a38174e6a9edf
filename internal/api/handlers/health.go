package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// HealthChecker is a dependency that can report its reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports service status
type HealthHandler struct {
	redis   HealthChecker
	version string
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// NewHealthHandler creates the handler. redis is nil when the cache is disabled.
func NewHealthHandler(redis HealthChecker, version string) *HealthHandler {
	return &HealthHandler{redis: redis, version: version}
}

// HealthCheck handles GET /health. A configured but unreachable redis
// degrades the service and answers 503.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	services := map[string]string{"engine": "healthy"}
	status := "healthy"

	if h.redis == nil {
		services["redis"] = "disabled"
	} else if err := h.redis.HealthCheck(c.Request.Context()); err != nil {
		services["redis"] = "unhealthy: " + err.Error()
		status = "degraded"
	} else {
		services["redis"] = "healthy"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
	})
}

// LivenessCheck answers as long as the process serves requests
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
