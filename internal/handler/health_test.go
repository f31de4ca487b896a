package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ashmitsharp/tradebook/internal/cache"
	"github.com/ashmitsharp/tradebook/internal/models"
)

type fakeStats struct{}

func (fakeStats) Stats() cache.Stats { return cache.Stats{HitRatio: 0.5} }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeJobs struct{}

func (fakeJobs) GetJobStats() models.SchedulerStats {
	return models.SchedulerStats{TotalJobs: 1, Jobs: []models.JobStats{{Name: "system_stats", NextRun: 1704067200}}}
}

func getHealth(t *testing.T, h *HealthHandler) (int, models.HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.Health)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealthReportsJobs(t *testing.T) {
	code, resp := getHealth(t, NewHealthHandler("1.0.0", fakeStats{}, nil, fakeJobs{}))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", resp.Status)
	require.False(t, resp.ArchiveEnabled)
	require.Equal(t, 0.5, resp.SessionHitRatio)
	require.NotNil(t, resp.Scheduler)
	require.Equal(t, 1, resp.Scheduler.TotalJobs)
	require.Equal(t, "system_stats", resp.Scheduler.Jobs[0].Name)
}

func TestHealthDegradedWhenArchiveDown(t *testing.T) {
	code, resp := getHealth(t, NewHealthHandler("1.0.0", fakeStats{}, fakePinger{err: errors.New("connection refused")}, nil))
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "degraded", resp.Status)
	require.True(t, resp.ArchiveEnabled)
	require.False(t, resp.ArchiveHealthy)
	require.Nil(t, resp.Scheduler)

	code, resp = getHealth(t, NewHealthHandler("1.0.0", fakeStats{}, fakePinger{}, nil))
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.ArchiveHealthy)
}
