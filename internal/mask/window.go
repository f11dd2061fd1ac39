package mask

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// windowKeepThreshold: older observations scoring above it survive outside
// the window.
const windowKeepThreshold = 0.9

const placeholderFirstLineMax = 80

var (
	jsonPathPattern = regexp.MustCompile(`"(?:file_?path|path|filename|file)"\s*:\s*"([^"]+)"`)
	barePathPattern = regexp.MustCompile(`(?:[\w.~-]*/)*[\w.-]+\.[A-Za-z0-9]+`)
)

// ApplySlidingWindowMask keeps the windowSize most recent observations (by
// timestamp) in full, subject to the per-observation cap. Older errors and
// observations scoring above 0.9 are kept at half the cap; everything else
// becomes a one-line placeholder. A non-positive windowSize uses the
// configured default. The returned slice is in input order.
func (m *Masker) ApplySlidingWindowMask(observations []Observation, windowSize int) ([]MaskedObservation, Stats) {
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
	if windowSize <= 0 {
		windowSize = m.config.WindowSize
	}

	order := make([]int, len(observations))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return observations[a].Timestamp.Compare(observations[b].Timestamp)
	})

	maxTokens := m.config.MaxTokensPerObservation
	cut := len(order) - windowSize
	for rank, pos := range order {
		obs := observations[pos]
		relevance := m.Relevance(obs)

		switch {
		case rank >= cut:
			out := m.truncateToTokens(obs.Output, maxTokens)
			reason := ""
			if out != obs.Output {
				reason = ReasonTruncatedToLimit
			}
			results[pos] = newMasked(obs, out, relevance, true, reason)
		case obs.Type == OutputError || relevance > windowKeepThreshold:
			out := m.truncateToTokens(obs.Output, maxTokens/2)
			results[pos] = newMasked(obs, out, relevance, true, ReasonRetainedOutsideWindow)
		default:
			results[pos] = newMasked(obs, windowPlaceholder(obs), relevance, false, ReasonOutsideWindow)
		}
	}

	return results, computeStats(observations, results)
}

// windowPlaceholder is the dense stand-in for an observation that slid out
// of the window.
func windowPlaceholder(obs Observation) string {
	return fmt.Sprintf("[%s: %s | %d lines, ~%d tokens]",
		toolLabel(obs.ToolName), typeSummary(obs), countLines(obs.Output), EstimateTokens(obs.Output))
}

// typeSummary returns a short, type-specific description of obs.
func typeSummary(obs Observation) string {
	switch obs.Type {
	case OutputFileContent:
		if path := extractPath(obs.Input); path != "" {
			return "read " + path
		}
		return "file content"
	case OutputSearchResult:
		return fmt.Sprintf("%d matches", countNonBlankLines(obs.Output))
	case OutputCommandOutput, OutputError:
		if line := firstLine(obs.Output); line != "" {
			return clipRunes(line, placeholderFirstLineMax)
		}
		return "no output"
	case OutputCode:
		return "code"
	case OutputLog:
		return "log output"
	case OutputMetadata:
		return "metadata"
	default:
		return "output"
	}
}

// extractPath finds a file path in a tool input, either as a JSON field or as
// a bare path-looking token.
func extractPath(input string) string {
	if m := jsonPathPattern.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return barePathPattern.FindString(input)
}

func countNonBlankLines(s string) int {
	n := 0
	for line := range strings.SplitSeq(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
