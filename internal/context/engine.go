package ctxengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/ctxprune/internal/mask"
	"github.com/flemzord/ctxprune/internal/prune"
	"github.com/flemzord/ctxprune/internal/ttl"
	"github.com/flemzord/ctxprune/pkg/message"
)

const tracerName = "github.com/flemzord/ctxprune/internal/context"

// Pass names used for spans and the pass_duration_seconds metric.
const (
	passIngest  = "ingest"
	passWindow  = "window"
	passPrune   = "prune"
	passCleanup = "cleanup"
)

// IngestResult is the outcome of masking a batch of tool observations.
type IngestResult struct {
	Observations []mask.MaskedObservation
	Stats        mask.Stats
}

// PassResult is the outcome of one pruning pass over a history.
type PassResult struct {
	Messages []message.PrunableMessage

	HardCleared        int
	ClearedToolCallIDs []string
	SoftTrimmed        int
	CharsRemoved       int

	// Expiring lists tool calls that will expire within the configured
	// threshold, for callers that want to warn ahead of eviction.
	Expiring []ttl.ToolCall

	TokensBefore int
	Budget       HistoryBudget
}

// Engine owns the masker and TTL tracker of one session and serializes every
// pass over them.
type Engine struct {
	mu        sync.Mutex
	masker    *mask.Masker
	tracker   *ttl.Tracker
	estimator TokenEstimator
	config    EngineConfig
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer overrides the OpenTelemetry tracer. The default comes from the
// global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithEstimator overrides the token estimator used for history budgets.
func WithEstimator(est TokenEstimator) Option {
	return func(e *Engine) {
		if est != nil {
			e.estimator = est
		}
	}
}

// New creates an Engine around a masker and a tracker.
func New(masker *mask.Masker, tracker *ttl.Tracker, cfg EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		masker:    masker,
		tracker:   tracker,
		estimator: NewCharEstimator(4),
		config:    cfg.withDefaults(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetQuery sets the query context used for relevance scoring.
func (e *Engine) SetQuery(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if text == "" {
		e.masker.ClearQueryContext()
		return
	}
	e.masker.SetQueryContext(text)
}

// Ingest masks a batch of tool observations under the total token budget and
// registers each call with the tracker. Observations are assumed to occupy
// consecutive history positions starting at firstIndex.
func (e *Engine) Ingest(ctx context.Context, observations []mask.Observation, firstIndex int) (IngestResult, error) {
	return e.ingest(ctx, passIngest, observations, firstIndex, e.masker.MaskObservations)
}

// IngestWindow is Ingest with the sliding-window policy instead of the
// global budget.
func (e *Engine) IngestWindow(ctx context.Context, observations []mask.Observation, firstIndex, windowSize int) (IngestResult, error) {
	return e.ingest(ctx, passWindow, observations, firstIndex, func(obs []mask.Observation) ([]mask.MaskedObservation, mask.Stats) {
		return e.masker.ApplySlidingWindowMask(obs, windowSize)
	})
}

type maskFunc func([]mask.Observation) ([]mask.MaskedObservation, mask.Stats)

func (e *Engine) ingest(ctx context.Context, pass string, observations []mask.Observation, firstIndex int, apply maskFunc) (IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return IngestResult{}, err
	}
	_, span := e.tracer.Start(ctx, "ctxprune."+pass,
		trace.WithAttributes(attribute.Int("observations", len(observations))))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	typed := make([]mask.Observation, len(observations))
	for i, obs := range observations {
		if obs.Type == "" {
			obs.Type = e.masker.DetectOutputType(obs.ToolName, obs.Output)
		}
		typed[i] = obs
	}

	results, stats := apply(typed)
	for i, obs := range typed {
		if obs.ID != "" {
			e.tracker.Register(obs.ID, obs.ToolName, firstIndex+i)
		}
	}

	e.metrics.observe(results, stats)
	e.observePass(pass, start)
	e.updateTracked()

	span.SetAttributes(
		attribute.Int("retained", stats.Retained),
		attribute.Int("masked", stats.Masked),
		attribute.Int("tokens_saved", stats.TokensSaved),
	)
	span.SetStatus(codes.Ok, "")
	e.logger.Debug("observations ingested",
		"pass", pass,
		"count", stats.TotalObservations,
		"retained", stats.Retained,
		"masked", stats.Masked,
		"tokens_saved", stats.TokensSaved,
	)
	return IngestResult{Observations: results, Stats: stats}, nil
}

// Prune runs one pass over history at instant now: tool calls the tracker
// reports expired are hard-cleared together with messages past the age
// ceiling, the cleared calls are marked pruned, and the surviving oversized
// messages are soft-trimmed. The input slice is not modified.
func (e *Engine) Prune(ctx context.Context, history []message.PrunableMessage, now time.Time) (PassResult, error) {
	if err := ctx.Err(); err != nil {
		return PassResult{}, err
	}
	_, span := e.tracer.Start(ctx, "ctxprune."+passPrune,
		trace.WithAttributes(attribute.Int("messages", len(history))))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	if now.IsZero() {
		now = start
	}

	expiredCalls := e.tracker.ExpiredToolCalls(now)
	expired := make([]prune.ExpiredCall, len(expiredCalls))
	expiredIDs := make([]string, len(expiredCalls))
	for i, tc := range expiredCalls {
		expired[i] = prune.ExpiredCall{ToolCallID: tc.ID, ToolName: tc.ToolName}
		expiredIDs[i] = tc.ID
	}

	hardOpts := e.config.HardClear
	hardOpts.Now = now
	cleared := prune.ApplyHardClear(history, expired, hardOpts)

	// Every expired call is now either cleared, attached to an already
	// cleared message, or gone from history.
	e.tracker.MarkManyPruned(expiredIDs...)
	e.tracker.MarkManyPruned(cleared.ClearedToolCallIDs...)

	trimmed := prune.SoftTrimMessages(cleared.Messages, e.config.SoftTrim)

	res := PassResult{
		Messages:           trimmed.Messages,
		HardCleared:        cleared.ClearedCount,
		ClearedToolCallIDs: cleared.ClearedToolCallIDs,
		SoftTrimmed:        trimmed.TrimmedCount,
		CharsRemoved:       trimmed.TotalRemoved,
		Expiring:           e.tracker.ExpiringToolCalls(e.config.ExpiringThreshold, now),
		TokensBefore:       EstimateMessages(e.estimator, history),
		Budget: HistoryBudget{
			WindowSize: e.config.MaxHistoryTokens,
			Reserved:   e.config.ReservedForReply,
			History:    EstimateMessages(e.estimator, trimmed.Messages),
		},
	}

	if e.metrics != nil {
		e.metrics.MessagesPruned.WithLabelValues("hard_clear").Add(float64(res.HardCleared))
		e.metrics.MessagesPruned.WithLabelValues("soft_trim").Add(float64(res.SoftTrimmed))
		e.metrics.PrunedChars.Add(float64(res.CharsRemoved))
	}
	e.observePass(passPrune, start)
	e.updateTracked()

	span.SetAttributes(
		attribute.Int("hard_cleared", res.HardCleared),
		attribute.Int("soft_trimmed", res.SoftTrimmed),
		attribute.Int("tokens_before", res.TokensBefore),
		attribute.Int("tokens_after", res.Budget.History),
	)
	span.SetStatus(codes.Ok, "")

	if res.Budget.Exceeded() {
		e.logger.Warn("history still over budget after pruning",
			"tokens", res.Budget.History,
			"reserved", res.Budget.Reserved,
			"window", res.Budget.WindowSize,
		)
	}
	logf := e.logger.Debug
	if res.HardCleared > 0 || res.SoftTrimmed > 0 {
		logf = e.logger.Info
	}
	logf("prune pass complete",
		"messages", len(history),
		"hard_cleared", res.HardCleared,
		"soft_trimmed", res.SoftTrimmed,
		"chars_removed", res.CharsRemoved,
		"tokens_before", res.TokensBefore,
		"tokens_after", res.Budget.History,
	)
	return res, nil
}

// Cleanup drops pruned tool-call records older than the configured retention
// and returns how many were removed.
func (e *Engine) Cleanup(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	removed := e.tracker.Cleanup(e.config.CleanupAfter, now)
	e.observePass(passCleanup, start)
	e.updateTracked()
	if removed > 0 {
		e.logger.Info("tool-call records cleaned up", "removed", removed)
	}
	return removed
}

// Records snapshots the tracker for persistence.
func (e *Engine) Records() []ttl.ToolCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Records()
}

// Restore replaces the tracker's records with a persisted snapshot.
func (e *Engine) Restore(records []ttl.ToolCall) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.Restore(records)
	e.updateTracked()
}

// TrackerStats reports the tracker's record counts.
func (e *Engine) TrackerStats() ttl.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Stats()
}

func (e *Engine) observePass(pass string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.PassDuration.WithLabelValues(pass).Observe(time.Since(start).Seconds())
}

func (e *Engine) updateTracked() {
	if e.metrics == nil {
		return
	}
	s := e.tracker.Stats()
	e.metrics.TrackedToolCalls.WithLabelValues("active").Set(float64(s.ActiveCount))
	e.metrics.TrackedToolCalls.WithLabelValues("pruned").Set(float64(s.PrunedCount))
}
