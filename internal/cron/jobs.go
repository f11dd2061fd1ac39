package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RecordStore is the subset of the tool-call store needed by cron jobs.
// Defined here to avoid a dependency on the storage module.
type RecordStore interface {
	DeletePruned(ctx context.Context, olderThan time.Time) (int64, error)
}

// Sweeper is the subset of the context engine needed to drop pruned records
// held in memory.
type Sweeper interface {
	Cleanup(now time.Time) int
}

const defaultCleanupSchedule = "*/10 * * * *"

// TTLCleanupJob deletes persisted tool-call records that were pruned more
// than MaxAge ago.
type TTLCleanupJob struct {
	Store        RecordStore
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string           // empty = default "*/10 * * * *"
	Now          func() time.Time // nil = time.Now
}

// Compile-time interface check.
var _ Job = (*TTLCleanupJob)(nil)

// Name implements Job.
func (j *TTLCleanupJob) Name() string { return "ttl_cleanup" }

// Schedule implements Job.
func (j *TTLCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return defaultCleanupSchedule
}

// Run deletes pruned records called before now - MaxAge.
func (j *TTLCleanupJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: ttl cleanup cancelled: %w", ctx.Err())
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	deleted, err := j.Store.DeletePruned(ctx, now().Add(-j.MaxAge))
	if err != nil {
		return fmt.Errorf("cron: ttl cleanup: %w", err)
	}
	if deleted > 0 {
		j.Logger.Info("cron: deleted pruned tool-call records", "count", deleted)
	}
	return nil
}

// SweepJob drops pruned tool-call records from a live engine.
type SweepJob struct {
	Engine       Sweeper
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/10 * * * *"
	Now          func() time.Time
}

// Compile-time interface check.
var _ Job = (*SweepJob)(nil)

// Name implements Job.
func (j *SweepJob) Name() string { return "engine_sweep" }

// Schedule implements Job.
func (j *SweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return defaultCleanupSchedule
}

// Run implements Job.
func (j *SweepJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: engine sweep cancelled: %w", ctx.Err())
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	if removed := j.Engine.Cleanup(now()); removed > 0 {
		j.Logger.Debug("cron: swept engine records", "count", removed)
	}
	return nil
}
