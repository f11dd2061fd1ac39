package mask

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// minTruncateTokens is the smallest allowance worth truncating into; below
// it an observation is masked instead.
const minTruncateTokens = 100

// Masker scores and masks tool outputs under a Config.
//
// A Masker is not safe for concurrent use while its query context is being
// changed; each agent session owns its own.
type Masker struct {
	config   Config
	keywords []string // lowercase ImportantKeywords
	query    []string
	now      func() time.Time
}

// Option configures a Masker.
type Option func(*Masker)

// WithClock overrides the time source used for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(m *Masker) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMasker creates a Masker. The config is copied; later changes to the
// caller's slices have no effect.
func NewMasker(cfg Config, opts ...Option) *Masker {
	cfg = cfg.withDefaults()
	m := &Masker{
		config: cfg,
		now:    time.Now,
	}
	for _, kw := range cfg.ImportantKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			m.keywords = append(m.keywords, kw)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns a copy of the masker's configuration.
func (m *Masker) Config() Config {
	cfg := m.config
	cfg.ImportantKeywords = slices.Clone(cfg.ImportantKeywords)
	cfg.ErrorPatterns = slices.Clone(cfg.ErrorPatterns)
	return cfg
}

// SetQueryContext extracts keywords from the current task or user query.
// Subsequent scoring rewards outputs that mention them.
func (m *Masker) SetQueryContext(text string) {
	m.query = ExtractKeywords(text)
}

// ClearQueryContext removes the query context.
func (m *Masker) ClearQueryContext() {
	m.query = nil
}

// QueryKeywords returns the active query keywords.
func (m *Masker) QueryKeywords() []string {
	return slices.Clone(m.query)
}

// MaskObservation masks a single observation against the per-observation cap
// and the relevance threshold.
func (m *Masker) MaskObservation(obs Observation) MaskedObservation {
	if !m.config.Enabled {
		return passThrough(obs)
	}

	relevance := m.Relevance(obs)
	maxTokens := m.config.MaxTokensPerObservation

	if m.shouldRetainFully(obs, relevance) {
		out := m.truncateToTokens(obs.Output, maxTokens)
		reason := ""
		if out != obs.Output {
			reason = ReasonTruncatedToLimit
		}
		return newMasked(obs, out, relevance, true, reason)
	}

	if relevance < m.config.MinRelevanceThreshold {
		return newMasked(obs, maskSummary(obs, ReasonLowRelevance), relevance, false, ReasonLowRelevance)
	}

	out := m.truncateToTokens(m.extractRelevant(obs, relevance), maxTokens)
	return newMasked(obs, out, relevance, true, ReasonPartialExtraction)
}

// MaskObservations allocates TotalTokenBudget across a batch.
//
// Observations are visited by relevance*typePriority, highest first. Equal
// keys keep arrival order. The returned slice is in input order. The
// estimated tokens of all retained outputs never exceed TotalTokenBudget.
func (m *Masker) MaskObservations(observations []Observation) ([]MaskedObservation, Stats) {
	results := make([]MaskedObservation, len(observations))
	if len(observations) == 0 {
		return results, Stats{}
	}
	if !m.config.Enabled {
		for i, obs := range observations {
			results[i] = passThrough(obs)
		}
		return results, computeStats(observations, results)
	}

	type candidate struct {
		pos       int
		relevance float64
		priority  float64
	}
	candidates := make([]candidate, len(observations))
	for i, obs := range observations {
		rel := m.Relevance(obs)
		candidates[i] = candidate{
			pos:       i,
			relevance: rel,
			priority:  rel * m.config.TypePriorities.Weight(obs.Type),
		}
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		switch {
		case a.priority > b.priority:
			return -1
		case a.priority < b.priority:
			return 1
		}
		return 0
	})

	budget := m.config.TotalTokenBudget
	used := 0
	for _, c := range candidates {
		obs := observations[c.pos]
		remaining := budget - used
		allowed := min(remaining, m.config.MaxTokensPerObservation)
		tokens := EstimateTokens(obs.Output)

		switch {
		case remaining <= 0:
			results[c.pos] = newMasked(obs, maskSummary(obs, ReasonBudgetExceeded), c.relevance, false, ReasonBudgetExceeded)
		case tokens <= allowed:
			used += tokens
			results[c.pos] = newMasked(obs, obs.Output, c.relevance, true, "")
		case allowed >= minTruncateTokens:
			out := m.truncateToTokens(obs.Output, allowed)
			used += EstimateTokens(out)
			results[c.pos] = newMasked(obs, out, c.relevance, true, ReasonTruncatedToBudget)
		default:
			results[c.pos] = newMasked(obs, maskSummary(obs, ReasonInsufficientBudget), c.relevance, false, ReasonInsufficientBudget)
		}
	}

	return results, computeStats(observations, results)
}

// maskSummary is the one-line replacement for a fully masked output.
func maskSummary(obs Observation, reason string) string {
	return fmt.Sprintf("[MASKED: %s output - %d lines, ~%d tokens, reason: %s]",
		toolLabel(obs.ToolName), countLines(obs.Output), EstimateTokens(obs.Output), reason)
}

func toolLabel(name string) string {
	if name == "" {
		return "tool"
	}
	return name
}

func passThrough(obs Observation) MaskedObservation {
	return newMasked(obs, obs.Output, 1, true, "")
}

func newMasked(obs Observation, out string, relevance float64, retained bool, reason string) MaskedObservation {
	masked := MaskedObservation{
		Observation:    obs,
		OriginalLength: runeLen(obs.Output),
		MaskedLength:   runeLen(out),
		RelevanceScore: relevance,
		WasRetained:    retained,
		MaskReason:     reason,
	}
	masked.Output = out
	return masked
}

// computeStats compares original and masked outputs position by position.
func computeStats(original []Observation, masked []MaskedObservation) Stats {
	s := Stats{TotalObservations: len(masked)}
	for i := range masked {
		if masked[i].WasRetained {
			s.Retained++
		} else {
			s.Masked++
		}
		s.OriginalTokens += EstimateTokens(original[i].Output)
		s.MaskedTokens += EstimateTokens(masked[i].Output)
	}
	s.TokensSaved = max(s.OriginalTokens-s.MaskedTokens, 0)
	if s.OriginalTokens > 0 {
		s.PercentSaved = float64(s.TokensSaved) / float64(s.OriginalTokens) * 100
	}
	return s
}
