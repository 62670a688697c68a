package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the liveness and readiness endpoint
type HealthHandler struct {
	BaseHandler
	version   string
	startTime time.Time
	checks    map[string]HealthCheck
}

// NewHealthHandler creates a HealthHandler running the named checks on every call
func NewHealthHandler(version string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		checks:    checks,
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health runs every dependency check; any failure turns the response into a 503.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]string, len(h.checks)),
	}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
