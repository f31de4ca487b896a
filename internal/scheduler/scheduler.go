package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/cache"
	"github.com/ashmitsharp/tradebook/internal/config"
	"github.com/ashmitsharp/tradebook/internal/models"
)

const (
	statsJob     = "system_stats"
	retentionJob = "archive_retention"
)

// SessionStats reports session cache counters.
type SessionStats interface {
	Stats() cache.Stats
}

// Archive is the part of the trade archive the retention job needs.
type Archive interface {
	DeleteArchivedBefore(ctx context.Context, cutoff time.Time) error
	Ping(ctx context.Context) error
}

// Scheduler handles scheduled background tasks
type Scheduler struct {
	cron          *cron.Cron
	cfg           config.SchedulerConfig
	sessions      SessionStats
	archive       Archive
	retentionDays int
	names         map[cron.EntryID]string
	now           func() time.Time
	logger        *zap.Logger
}

// NewScheduler creates a new scheduler instance. archive may be nil when
// archiving is disabled; the retention job is then not registered.
func NewScheduler(cfg config.SchedulerConfig, sessions SessionStats, archive Archive, retentionDays int, logger *zap.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())

	return &Scheduler{
		cron:          c,
		cfg:           cfg,
		sessions:      sessions,
		archive:       archive,
		retentionDays: retentionDays,
		names:         make(map[cron.EntryID]string),
		now:           time.Now,
		logger:        logger,
	}
}

// Start registers all cron jobs and starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	if err := s.registerJobs(); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) registerJobs() error {
	id, err := s.cron.AddFunc(s.cfg.StatsSpec, s.logSystemStats)
	if err != nil {
		return fmt.Errorf("registering stats job %q: %w", s.cfg.StatsSpec, err)
	}
	s.names[id] = statsJob

	if s.archive != nil {
		id, err := s.cron.AddFunc(s.cfg.RetentionSpec, func() {
			if err := s.cleanupArchive(context.Background()); err != nil {
				s.logger.Error("Failed to clean up trade archive", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("registering retention job %q: %w", s.cfg.RetentionSpec, err)
		}
		s.names[id] = retentionJob
	}

	s.logger.Info("Registered cron jobs", zap.Int("jobs_count", len(s.cron.Entries())))
	return nil
}

// logSystemStats logs session cache and runtime statistics
func (s *Scheduler) logSystemStats() {
	stats := s.sessions.Stats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s.logger.Info("System stats",
		zap.Uint64("session_hits", stats.Hits),
		zap.Uint64("session_misses", stats.Misses),
		zap.Uint64("sessions_added", stats.KeysAdded),
		zap.Uint64("sessions_evicted", stats.KeysEvicted),
		zap.Float64("session_hit_ratio", stats.HitRatio),
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Uint64("heap_alloc_bytes", mem.HeapAlloc),
		zap.Int("total_jobs", len(s.cron.Entries())))
}

// cleanupArchive deletes archived fills older than the retention period
func (s *Scheduler) cleanupArchive(ctx context.Context) error {
	if err := s.archive.Ping(ctx); err != nil {
		return fmt.Errorf("archive unreachable: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	if err := s.archive.DeleteArchivedBefore(ctx, cutoff); err != nil {
		return err
	}

	s.logger.Info("Trade archive cleanup completed",
		zap.Time("cutoff", cutoff),
		zap.Int("retention_days", s.retentionDays))
	return nil
}

// GetJobStats returns statistics about scheduled jobs
func (s *Scheduler) GetJobStats() models.SchedulerStats {
	entries := s.cron.Entries()

	stats := models.SchedulerStats{TotalJobs: len(entries), Jobs: make([]models.JobStats, 0, len(entries))}
	for _, entry := range entries {
		stats.Jobs = append(stats.Jobs, models.JobStats{
			Name:    s.names[entry.ID],
			NextRun: unixOrZero(entry.Next),
			PrevRun: unixOrZero(entry.Prev),
		})
	}
	return stats
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
