package ctxengine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flemzord/ctxprune/internal/mask"
)

// Metrics groups the Prometheus instruments updated by the engine.
type Metrics struct {
	Observations     *prometheus.CounterVec
	TokensSaved      prometheus.Counter
	MessagesPruned   *prometheus.CounterVec
	PrunedChars      prometheus.Counter
	TrackedToolCalls *prometheus.GaugeVec
	PassDuration     *prometheus.HistogramVec
}

// NewMetrics registers the engine instruments on reg. A nil reg creates an
// unregistered set, which is what most tests want.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Observations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Tool observations ingested, by outcome.",
		}, []string{"outcome"}),
		TokensSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observation_tokens_saved_total",
			Help:      "Estimated tokens removed from tool output by masking.",
		}),
		MessagesPruned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_pruned_total",
			Help:      "History messages changed by a pruning pass, by action.",
		}, []string{"action"}),
		PrunedChars: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_chars_total",
			Help:      "Characters removed from history by soft trimming.",
		}),
		TrackedToolCalls: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_tool_calls",
			Help:      "Tool-call records held by the TTL tracker, by state.",
		}, []string{"state"}),
		PassDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of engine passes.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"pass"}),
	}
}

// Outcome labels for Observations.
const (
	outcomeRetained  = "retained"
	outcomeTruncated = "truncated"
	outcomeMasked    = "masked"
)

func (m *Metrics) observe(results []mask.MaskedObservation, stats mask.Stats) {
	if m == nil {
		return
	}
	for _, r := range results {
		m.Observations.WithLabelValues(outcome(r)).Inc()
	}
	m.TokensSaved.Add(float64(stats.TokensSaved))
}

func outcome(r mask.MaskedObservation) string {
	switch {
	case !r.WasRetained:
		return outcomeMasked
	case r.MaskedLength < r.OriginalLength:
		return outcomeTruncated
	}
	return outcomeRetained
}
