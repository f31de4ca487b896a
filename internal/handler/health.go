package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashmitsharp/tradebook/internal/cache"
	"github.com/ashmitsharp/tradebook/internal/models"
)

const pingTimeout = 5 * time.Second

// SessionStats reports session cache counters.
type SessionStats interface {
	Stats() cache.Stats
}

// Pinger checks that the archive is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobReporter lists scheduled background jobs.
type JobReporter interface {
	GetJobStats() models.SchedulerStats
}

type HealthHandler struct {
	version  string
	started  time.Time
	sessions SessionStats
	archive  Pinger
	jobs     JobReporter
}

// NewHealthHandler creates a health handler. archive and jobs may be nil.
func NewHealthHandler(version string, sessions SessionStats, archive Pinger, jobs JobReporter) *HealthHandler {
	return &HealthHandler{
		version:  version,
		started:  time.Now(),
		sessions: sessions,
		archive:  archive,
		jobs:     jobs,
	}
}

// Health reports service status
// @Summary Service health
// @Description Reports uptime, session cache hit ratio, scheduled jobs and archive reachability. Returns 503 when the archive is enabled but unreachable.
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	resp := models.HealthResponse{
		Status:          "ok",
		Version:         h.version,
		Timestamp:       time.Now().Unix(),
		Uptime:          int64(time.Since(h.started).Seconds()),
		ArchiveEnabled:  h.archive != nil,
		SessionHitRatio: h.sessions.Stats().HitRatio,
	}
	if h.jobs != nil {
		stats := h.jobs.GetJobStats()
		resp.Scheduler = &stats
	}
	status := http.StatusOK

	if h.archive != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()
		resp.ArchiveHealthy = h.archive.Ping(ctx) == nil
		if !resp.ArchiveHealthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, resp)
}
