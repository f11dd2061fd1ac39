package ttl_test

import (
	"slices"
	"testing"
	"time"

	"github.com/flemzord/ctxprune/internal/ttl"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable time source.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTracker(ttlDur time.Duration) (*ttl.Tracker, *fakeClock) {
	clock := &fakeClock{now: t0}
	return ttl.NewTracker(ttlDur, ttl.WithClock(clock.Now)), clock
}

func ids(calls []ttl.ToolCall) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.ID)
	}
	return out
}

func TestTracker_ExpiryWindow(t *testing.T) {
	t.Parallel()

	tr, _ := newTracker(time.Second)
	tr.Register("tc-1", "read_file", 0)

	if tr.IsExpired("tc-1", t0.Add(500*time.Millisecond)) {
		t.Error("tc-1 expired after 500ms, want live")
	}
	if !tr.IsExpired("tc-1", t0.Add(1500*time.Millisecond)) {
		t.Error("tc-1 live after 1500ms, want expired")
	}
	if got := ids(tr.ExpiredToolCalls(t0.Add(1500 * time.Millisecond))); !slices.Equal(got, []string{"tc-1"}) {
		t.Fatalf("ExpiredToolCalls = %v, want [tc-1]", got)
	}

	tr.MarkPruned("tc-1")
	if got := tr.ExpiredToolCalls(t0.Add(1500 * time.Millisecond)); len(got) != 0 {
		t.Errorf("ExpiredToolCalls after MarkPruned = %v, want empty", got)
	}
}

func TestTracker_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Duration{time.Millisecond, time.Second, 5 * time.Minute} {
		tr, _ := newTracker(d)
		tr.Register("x", "bash", 1)

		if tr.IsExpired("x", t0.Add(d-time.Millisecond)) {
			t.Errorf("ttl %v: expired at T-1ms", d)
		}
		if tr.IsExpired("x", t0.Add(d)) {
			t.Errorf("ttl %v: expired at exactly T", d)
		}
		if !tr.IsExpired("x", t0.Add(d+time.Millisecond)) {
			t.Errorf("ttl %v: live at T+1ms", d)
		}
	}
}

func TestTracker_UnknownIDs(t *testing.T) {
	t.Parallel()

	tr, _ := newTracker(time.Second)
	if tr.IsExpired("ghost", t0.Add(time.Hour)) {
		t.Error("unknown id reported expired")
	}
	if got := tr.TimeRemaining("ghost", t0); got != 0 {
		t.Errorf("TimeRemaining(unknown) = %v, want 0", got)
	}
	tr.MarkPruned("ghost")
	tr.MarkManyPruned("ghost", "phantom")
	if s := tr.Stats(); s.TotalToolCalls != 0 {
		t.Errorf("Stats = %+v, want empty", s)
	}
}

func TestTracker_ZeroNowUsesClock(t *testing.T) {
	t.Parallel()

	tr, clock := newTracker(time.Second)
	tr.Register("a", "bash", 0)
	if tr.IsExpired("a", time.Time{}) {
		t.Fatal("expired immediately")
	}
	clock.Advance(2 * time.Second)
	if !tr.IsExpired("a", time.Time{}) {
		t.Error("zero now should read the clock")
	}
}

func TestTracker_RegisterOverwrites(t *testing.T) {
	t.Parallel()

	tr, clock := newTracker(time.Second)
	tr.Register("a", "bash", 0)
	tr.MarkPruned("a")
	clock.Advance(10 * time.Second)
	tr.Register("a", "grep", 4)

	recs := tr.Records()
	if len(recs) != 1 {
		t.Fatalf("Records = %v, want one", recs)
	}
	r := recs[0]
	if r.ToolName != "grep" || r.MessageIndex != 4 || r.Pruned || !r.CalledAt.Equal(clock.now) {
		t.Errorf("record = %+v, want fresh grep record", r)
	}
}

func TestTracker_ExpiringToolCalls(t *testing.T) {
	t.Parallel()

	tr, clock := newTracker(10 * time.Second)
	tr.Register("old", "bash", 0)
	clock.Advance(3 * time.Second)
	tr.Register("mid", "bash", 1)
	clock.Advance(3 * time.Second)
	tr.Register("new", "bash", 2)
	tr.Register("done", "bash", 3)
	tr.MarkPruned("done")

	now := t0.Add(8 * time.Second)
	// old: 2s left, mid: 5s left, new: 8s left.
	got := ids(tr.ExpiringToolCalls(5*time.Second, now))
	if want := []string{"old", "mid"}; !slices.Equal(got, want) {
		t.Errorf("ExpiringToolCalls = %v, want %v", got, want)
	}

	// Expired calls are not "expiring".
	if got := tr.ExpiringToolCalls(time.Hour, t0.Add(11*time.Second)); slices.Contains(ids(got), "old") {
		t.Errorf("expired call listed as expiring: %v", ids(got))
	}
}

func TestTracker_TimeRemaining(t *testing.T) {
	t.Parallel()

	tr, _ := newTracker(time.Minute)
	tr.Register("a", "bash", 0)

	if got := tr.TimeRemaining("a", t0.Add(20*time.Second)); got != 40*time.Second {
		t.Errorf("TimeRemaining = %v, want 40s", got)
	}
	if got := tr.TimeRemaining("a", t0.Add(time.Hour)); got != 0 {
		t.Errorf("TimeRemaining past expiry = %v, want 0", got)
	}
}

func TestTracker_MessageQueries(t *testing.T) {
	t.Parallel()

	tr, clock := newTracker(time.Second)
	tr.Register("a", "bash", 5)
	tr.Register("b", "grep", 5)
	tr.Register("c", "read", 2)
	clock.Advance(5 * time.Second)
	tr.Register("d", "read", 9)

	if got := ids(tr.ToolCallsForMessage(5)); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("ToolCallsForMessage(5) = %v", got)
	}

	now := t0.Add(3 * time.Second)
	if got := tr.ExpiredMessageIndices(now); !slices.Equal(got, []int{2, 5}) {
		t.Errorf("ExpiredMessageIndices = %v, want [2 5]", got)
	}
	tr.MarkManyPruned("a", "b")
	if got := tr.ExpiredMessageIndices(now); !slices.Equal(got, []int{2}) {
		t.Errorf("ExpiredMessageIndices after prune = %v, want [2]", got)
	}
}

func TestTracker_Cleanup(t *testing.T) {
	t.Parallel()

	tr, clock := newTracker(time.Second)
	tr.Register("old-pruned", "bash", 0)
	tr.Register("old-live", "bash", 1)
	tr.MarkPruned("old-pruned")
	clock.Advance(time.Hour)
	tr.Register("new-pruned", "bash", 2)
	tr.MarkPruned("new-pruned")

	if n := tr.Cleanup(30*time.Minute, clock.now); n != 1 {
		t.Fatalf("Cleanup removed %d, want 1", n)
	}
	if got := ids(tr.Records()); !slices.Equal(got, []string{"old-live", "new-pruned"}) {
		t.Errorf("Records after cleanup = %v", got)
	}

	s := tr.Stats()
	if s.TotalToolCalls != 2 || s.PrunedCount != 1 || s.ActiveCount != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestTracker_RestoreRoundTrip(t *testing.T) {
	t.Parallel()

	src, clock := newTracker(time.Second)
	src.Register("a", "bash", 0)
	clock.Advance(time.Second)
	src.Register("b", "grep", 1)
	src.MarkPruned("a")

	dst, _ := newTracker(time.Second)
	dst.Register("stale", "read", 7)
	dst.Restore(src.Records())

	if got, want := dst.Records(), src.Records(); !slices.Equal(got, want) {
		t.Errorf("restored records = %+v, want %+v", got, want)
	}
	if dst.TTL() != time.Second {
		t.Errorf("TTL() = %v", dst.TTL())
	}
}

func TestNewTracker_DefaultTTL(t *testing.T) {
	t.Parallel()

	if got := ttl.NewTracker(0).TTL(); got != ttl.DefaultTTL {
		t.Errorf("TTL() = %v, want %v", got, ttl.DefaultTTL)
	}
}
