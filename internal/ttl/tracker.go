// Package ttl tracks when each tool call was made and whether its result has
// been evicted, and answers "is this old enough to evict" queries.
package ttl

import (
	"cmp"
	"slices"
	"time"
)

// DefaultTTL is used when NewTracker is given a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// ToolCall is the tracking record of one tool call.
type ToolCall struct {
	ID           string    `json:"tool_call_id"`
	ToolName     string    `json:"tool_name"`
	CalledAt     time.Time `json:"called_at"`
	MessageIndex int       `json:"message_index"`
	Pruned       bool      `json:"pruned"`
}

// Stats summarizes the tracker's records.
type Stats struct {
	TotalToolCalls int `json:"total_tool_calls"`
	PrunedCount    int `json:"pruned_count"`
	ActiveCount    int `json:"active_count"`
}

// Tracker owns the ToolCall records of one session.
//
// It is not safe for concurrent use: each instance is owned by the goroutine
// running the session's pruning passes. Queries take an explicit now; a zero
// now falls back to the tracker's clock.
type Tracker struct {
	ttl   time.Duration
	calls map[string]*ToolCall
	clock func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source used by Register and by queries given a
// zero now.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTracker creates an empty tracker expiring calls older than ttl.
func NewTracker(ttl time.Duration, opts ...Option) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &Tracker{
		ttl:   ttl,
		calls: make(map[string]*ToolCall),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TTL returns the configured time-to-live.
func (t *Tracker) TTL() time.Duration { return t.ttl }

func (t *Tracker) resolve(now time.Time) time.Time {
	if now.IsZero() {
		return t.clock()
	}
	return now
}

// Register records a completed tool call at the current clock time.
// Registering an existing id overwrites its record.
func (t *Tracker) Register(id, toolName string, messageIndex int) {
	t.calls[id] = &ToolCall{
		ID:           id,
		ToolName:     toolName,
		CalledAt:     t.clock(),
		MessageIndex: messageIndex,
	}
}

// IsExpired reports whether the call is older than the TTL. Unknown ids are
// never expired.
func (t *Tracker) IsExpired(id string, now time.Time) bool {
	tc, ok := t.calls[id]
	if !ok {
		return false
	}
	return t.expired(tc, t.resolve(now))
}

func (t *Tracker) expired(tc *ToolCall, now time.Time) bool {
	return now.Sub(tc.CalledAt) > t.ttl
}

// ExpiredToolCalls returns expired calls that have not been pruned, oldest
// first.
func (t *Tracker) ExpiredToolCalls(now time.Time) []ToolCall {
	now = t.resolve(now)
	return t.collect(func(tc *ToolCall) bool {
		return !tc.Pruned && t.expired(tc, now)
	})
}

// ExpiringToolCalls returns unpruned calls that have not expired yet but will
// within threshold, oldest first.
func (t *Tracker) ExpiringToolCalls(threshold time.Duration, now time.Time) []ToolCall {
	now = t.resolve(now)
	return t.collect(func(tc *ToolCall) bool {
		elapsed := now.Sub(tc.CalledAt)
		return !tc.Pruned && elapsed > 0 && elapsed <= t.ttl && t.ttl-elapsed <= threshold
	})
}

// MarkPruned flags the call as evicted. Unknown ids are ignored.
func (t *Tracker) MarkPruned(id string) {
	if tc, ok := t.calls[id]; ok {
		tc.Pruned = true
	}
}

// MarkManyPruned flags every listed call as evicted.
func (t *Tracker) MarkManyPruned(ids ...string) {
	for _, id := range ids {
		t.MarkPruned(id)
	}
}

// TimeRemaining returns how long until the call expires, floored at zero.
// Unknown ids report zero.
func (t *Tracker) TimeRemaining(id string, now time.Time) time.Duration {
	tc, ok := t.calls[id]
	if !ok {
		return 0
	}
	return max(t.ttl-t.resolve(now).Sub(tc.CalledAt), 0)
}

// ToolCallsForMessage returns the calls attached to a history position.
func (t *Tracker) ToolCallsForMessage(messageIndex int) []ToolCall {
	return t.collect(func(tc *ToolCall) bool {
		return tc.MessageIndex == messageIndex
	})
}

// ExpiredMessageIndices returns, ascending and without duplicates, the
// indices of messages owning at least one expired, unpruned call.
func (t *Tracker) ExpiredMessageIndices(now time.Time) []int {
	var out []int
	for _, tc := range t.ExpiredToolCalls(now) {
		out = append(out, tc.MessageIndex)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Cleanup drops pruned records called more than maxAge before now and
// returns how many were removed.
func (t *Tracker) Cleanup(maxAge time.Duration, now time.Time) int {
	now = t.resolve(now)
	removed := 0
	for id, tc := range t.calls {
		if tc.Pruned && now.Sub(tc.CalledAt) > maxAge {
			delete(t.calls, id)
			removed++
		}
	}
	return removed
}

// Stats counts records by state.
func (t *Tracker) Stats() Stats {
	s := Stats{TotalToolCalls: len(t.calls)}
	for _, tc := range t.calls {
		if tc.Pruned {
			s.PrunedCount++
		}
	}
	s.ActiveCount = s.TotalToolCalls - s.PrunedCount
	return s
}

// Records returns a snapshot of every record, oldest first.
func (t *Tracker) Records() []ToolCall {
	return t.collect(func(*ToolCall) bool { return true })
}

// Restore replaces the tracker's records with the given snapshot.
func (t *Tracker) Restore(records []ToolCall) {
	t.calls = make(map[string]*ToolCall, len(records))
	for _, r := range records {
		t.calls[r.ID] = &r
	}
}

// collect copies matching records out of the map in a deterministic order.
func (t *Tracker) collect(match func(*ToolCall) bool) []ToolCall {
	var out []ToolCall
	for _, tc := range t.calls {
		if match(tc) {
			out = append(out, *tc)
		}
	}
	slices.SortFunc(out, func(a, b ToolCall) int {
		if c := a.CalledAt.Compare(b.CalledAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
