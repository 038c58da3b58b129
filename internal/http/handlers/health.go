package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tunegraph/internal/health"
	"github.com/yungbote/tunegraph/internal/http/response"
)

// Reporter is satisfied by *health.Monitor.
type Reporter interface {
	Latest() (health.Report, bool)
	Refresh(ctx context.Context) health.Report
}

type HealthHandler struct {
	reporter  Reporter
	ready     atomic.Bool
	startedAt time.Time
}

func NewHealthHandler(r Reporter) *HealthHandler {
	return &HealthHandler{reporter: r, startedAt: time.Now()}
}

// SetReady flips /readyz once startup (schema, providers) has finished.
func (h *HealthHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

type healthzResponse struct {
	health.Report
	Uptime string `json:"uptime"`
}

// Healthz serves the latest aggregated report, computing one if the
// background loop has not produced any yet. Unhealthy maps to 503.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if h.reporter == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "no_monitor", nil)
		return
	}
	report, ok := h.reporter.Latest()
	if !ok {
		report = h.reporter.Refresh(c.Request.Context())
	}
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, healthzResponse{
		Report: report,
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	if !h.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	response.RespondOK(c, gin.H{"status": "ready"})
}
