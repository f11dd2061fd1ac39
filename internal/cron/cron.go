// Package cron provides a job scheduler for periodic background tasks such
// as purging pruned tool-call records.
package cron

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "*/5 * * * *") or a
	// descriptor such as "@hourly" or "@every 10m".
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}

// parser accepts standard 5-field expressions and descriptors.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule reports whether expr is a schedule the Scheduler accepts.
func ParseSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}
