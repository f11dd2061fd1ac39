package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages periodic job execution using cron expressions.
// Each job is protected by a per-job mutex to prevent parallel execution
// of the same job; a tick that finds the job still running is skipped.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   []Job
	names  map[string]struct{}
	locks  map[string]*sync.Mutex
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		names:  make(map[string]struct{}),
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
	}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.names[name] = struct{}{}
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start initializes the cron scheduler and begins executing registered jobs.
// Returns an error if any job has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.cron = cron.New(cron.WithParser(parser))

	for _, job := range s.jobs {
		_, err := s.cron.AddFunc(job.Schedule(), func() {
			s.run(ctx, job)
		})
		if err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// RunNow executes a registered job immediately, outside its schedule. It
// shares the job's lock with scheduled ticks, so it returns ErrJobRunning
// instead of overlapping a tick in flight.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var job Job
	for _, j := range s.jobs {
		if j.Name() == name {
			job = j
			break
		}
	}
	s.mu.Unlock()

	if job == nil {
		return fmt.Errorf("cron: unknown job %q", name)
	}
	return s.exec(ctx, job)
}

// ErrJobRunning is returned by RunNow when the job is already executing.
var ErrJobRunning = errors.New("cron: job already running")

func (s *Scheduler) run(ctx context.Context, job Job) {
	err := s.exec(ctx, job)
	switch {
	case errors.Is(err, ErrJobRunning):
		s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
	case err != nil:
		s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
	}
}

// exec runs job under its TryLock. TryLock is atomic, so a tick that finds
// the previous run still in progress is skipped.
func (s *Scheduler) exec(ctx context.Context, job Job) error {
	lock := s.locks[job.Name()]
	if !lock.TryLock() {
		return ErrJobRunning
	}
	defer lock.Unlock()

	start := time.Now()
	s.logger.Debug("cron: job started", "job", job.Name())
	if err := job.Run(ctx); err != nil {
		return err
	}
	s.logger.Debug("cron: job completed", "job", job.Name(), "duration", time.Since(start))
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for in-flight jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		// Wait for running jobs to complete.
		<-s.cron.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
