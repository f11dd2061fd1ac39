package cron_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/flemzord/ctxprune/internal/cron"
	"github.com/flemzord/ctxprune/internal/cron/crontest"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestTTLCleanupJob_NameAndSchedule(t *testing.T) {
	t.Parallel()

	j := &cron.TTLCleanupJob{Logger: discard}
	if j.Name() != "ttl_cleanup" {
		t.Errorf("name = %q, want %q", j.Name(), "ttl_cleanup")
	}
	if j.Schedule() != "*/10 * * * *" {
		t.Errorf("schedule = %q, want default", j.Schedule())
	}
	j.ScheduleExpr = "@hourly"
	if j.Schedule() != "@hourly" {
		t.Errorf("schedule = %q, want override", j.Schedule())
	}
}

func TestTTLCleanupJob_Run(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &crontest.MockRecordStore{
		DeleteFunc: func(_ context.Context, olderThan time.Time) (int64, error) {
			if want := now.Add(-time.Hour); !olderThan.Equal(want) {
				t.Errorf("olderThan = %v, want %v", olderThan, want)
			}
			return 3, nil
		},
	}

	j := &cron.TTLCleanupJob{
		Store:  store,
		MaxAge: time.Hour,
		Logger: discard,
		Now:    func() time.Time { return now },
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.DeleteCalls.Load() != 1 {
		t.Errorf("delete calls = %d, want 1", store.DeleteCalls.Load())
	}
}

func TestTTLCleanupJob_StoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	j := &cron.TTLCleanupJob{
		Store: &crontest.MockRecordStore{
			DeleteFunc: func(context.Context, time.Time) (int64, error) { return 0, boom },
		},
		Logger: discard,
	}
	if err := j.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}

func TestTTLCleanupJob_Cancelled(t *testing.T) {
	t.Parallel()

	store := &crontest.MockRecordStore{}
	j := &cron.TTLCleanupJob{Store: store, Logger: discard}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if store.DeleteCalls.Load() != 0 {
		t.Error("store called after cancellation")
	}
}

type sweeper struct{ at []time.Time }

func (s *sweeper) Cleanup(now time.Time) int {
	s.at = append(s.at, now)
	return 2
}

func TestSweepJob_Run(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &sweeper{}
	j := &cron.SweepJob{Engine: s, Logger: discard, Now: func() time.Time { return now }}

	if j.Name() != "engine_sweep" || j.Schedule() != "*/10 * * * *" {
		t.Errorf("name/schedule = %q / %q", j.Name(), j.Schedule())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(s.at) != 1 || !s.at[0].Equal(now) {
		t.Errorf("Cleanup calls = %v", s.at)
	}
}

func TestScheduler_RunNowWithMockJob(t *testing.T) {
	t.Parallel()

	job := &crontest.MockJob{NameVal: "mock", ScheduleVal: "@every 1h"}
	s := cron.NewScheduler(discard)
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}
	if err := s.RunNow(context.Background(), "mock"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if job.CallCount() != 1 || job.LastCall().IsZero() {
		t.Errorf("calls = %d, last = %v", job.CallCount(), job.LastCall())
	}
	if err := s.RunNow(context.Background(), "ghost"); err == nil {
		t.Error("RunNow on unknown job should fail")
	}
}
