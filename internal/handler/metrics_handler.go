package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/service"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
	"github.com/noah-isme/univ-erp-api/pkg/response"
)

const readinessTimeout = 2 * time.Second

// Pinger is anything whose reachability decides readiness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics    *service.MetricsService
	dependents map[string]Pinger
}

// NewMetricsHandler constructs a metrics handler. dependents are checked by Ready.
func NewMetricsHandler(metrics *service.MetricsService, dependents map[string]Pinger) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, dependents: dependents}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether both stores answer.
func (h *MetricsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.dependents))
	ready := true
	for name, p := range h.dependents {
		if err := p.PingContext(ctx); err != nil {
			_ = c.Error(err)
			checks[name] = "down"
			ready = false
			continue
		}
		checks[name] = "up"
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}

// Summary godoc
// @Summary Runtime metrics summary
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	if h.metrics == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "metrics disabled"))
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
