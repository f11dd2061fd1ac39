package mask

import (
	"regexp"
	"strings"
	"time"
)

// Relevance weights.
const (
	typeWeight          = 0.3
	queryWeight         = 0.4
	noQueryBonus        = 0.2
	keywordHitWeight    = 0.05
	keywordHitCap       = 0.2
	errorPatternBonus   = 0.3
	recencyWeight       = 0.1
	recencyWindow       = 5 * time.Minute
	retainFullThreshold = 0.8
)

// Relevance scores obs in [0,1] from its type priority, query-keyword
// overlap, important-keyword hits, the first matching error pattern and its
// age.
func (m *Masker) Relevance(obs Observation) float64 {
	score := m.config.TypePriorities.Weight(obs.Type) * typeWeight

	text := strings.ToLower(obs.Output)
	if len(m.query) > 0 {
		haystack := text + "\n" + strings.ToLower(obs.Input)
		score += float64(countContained(haystack, m.query)) / float64(len(m.query)) * queryWeight
	} else {
		score += noQueryBonus
	}

	hits := float64(countContained(text, m.keywords)) * keywordHitWeight
	score += min(hits, keywordHitCap)

	if matchesAny(m.config.ErrorPatterns, obs.Output) {
		score += errorPatternBonus
	}

	score += m.recency(obs.Timestamp) * recencyWeight
	return clamp01(score)
}

// recency is 1 for a just-created observation, falling linearly to 0 at the
// end of the recency window. A zero timestamp earns nothing.
func (m *Masker) recency(ts time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	age := m.now().Sub(ts)
	if age < 0 {
		age = 0
	}
	return max(0, 1-float64(age)/float64(recencyWindow))
}

// shouldRetainFully reports whether obs bypasses relevance masking.
func (m *Masker) shouldRetainFully(obs Observation, relevance float64) bool {
	if obs.Type == OutputError || relevance > retainFullThreshold {
		return true
	}
	return matchesAny(m.config.ErrorPatterns, obs.Output)
}

// countContained returns how many of the lowercase needles occur in the
// lowercase haystack.
func countContained(haystack string, needles []string) int {
	n := 0
	for _, kw := range needles {
		if kw != "" && strings.Contains(haystack, kw) {
			n++
		}
	}
	return n
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p != nil && p.MatchString(s) {
			return true
		}
	}
	return false
}
