package mask

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
)

// Line-scoring weights used by partial extraction.
const (
	lineErrorScore   = 2.0
	lineKeywordScore = 0.5
	lineQueryScore   = 1.0
	lineDeclScore    = 1.0
	lineNumberScore  = 0.3
)

// lineMarkerReserve is the room kept for the "[n lines truncated]" marker.
const lineMarkerReserve = 32

var (
	declarationPattern = regexp.MustCompile(`^\s*(?:export\s+)?(?:func|def|class|interface|type|struct|enum|impl|fn|const|let|var|package|import|public|private|protected|module)\b`)
	digitPattern       = regexp.MustCompile(`\d`)
)

// extractRelevant keeps the head and tail lines of obs.Output verbatim plus
// the floor(relevance*10) best-scoring interior lines, in their original
// order, followed by a marker counting the omitted lines.
func (m *Masker) extractRelevant(obs Observation, relevance float64) string {
	lines := strings.Split(obs.Output, "\n")
	ht := m.config.HeadTailLines
	if len(lines) <= 2*ht {
		return obs.Output
	}

	interior := lines[ht : len(lines)-ht]
	type scoredLine struct {
		pos   int
		score float64
	}
	scored := make([]scoredLine, len(interior))
	for i, line := range interior {
		scored[i] = scoredLine{pos: i, score: m.scoreLine(line, obs.Type)}
	}
	// Stable: equal scores keep their original order.
	slices.SortStableFunc(scored, func(a, b scoredLine) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	keep := min(int(math.Floor(relevance*10)), len(interior))
	keep = max(keep, 0)
	picked := scored[:keep]
	slices.SortFunc(picked, func(a, b scoredLine) int { return a.pos - b.pos })

	out := make([]string, 0, 2*ht+keep+1)
	out = append(out, lines[:ht]...)
	for _, s := range picked {
		out = append(out, interior[s.pos])
	}
	if omitted := len(interior) - keep; omitted > 0 {
		out = append(out, fmt.Sprintf("... (%d lines masked) ...", omitted))
	}
	out = append(out, lines[len(lines)-ht:]...)
	return strings.Join(out, "\n")
}

// scoreLine rates a single interior line.
func (m *Masker) scoreLine(line string, typ OutputType) float64 {
	score := 0.0
	if matchesAny(m.config.ErrorPatterns, line) {
		score += lineErrorScore
	}
	lower := strings.ToLower(line)
	score += float64(countContained(lower, m.keywords)) * lineKeywordScore
	score += float64(countContained(lower, m.query)) * lineQueryScore
	if (typ == OutputCode || typ == OutputFileContent) && declarationPattern.MatchString(line) {
		score += lineDeclScore
	}
	if digitPattern.MatchString(line) {
		score += lineNumberScore
	}
	return score
}

// truncateToTokens shortens content to at most maxTokens estimated tokens.
// The result never exceeds maxTokens*4 characters.
func (m *Masker) truncateToTokens(content string, maxTokens int) string {
	maxTokens = max(maxTokens, 0)
	if EstimateTokens(content) <= maxTokens {
		return content
	}
	maxChars := maxTokens * charsPerToken

	if !m.config.KeepPartialContent {
		notice := fmt.Sprintf("[Content truncated: %d lines, ~%d tokens exceeded the %d token limit]",
			countLines(content), EstimateTokens(content), maxTokens)
		return clipRunes(notice, maxChars)
	}

	lines := strings.Split(content, "\n")
	total := runeLen(content)
	avgLine := max((total+len(lines)-1)/len(lines), 1)
	targetLines := (maxChars - lineMarkerReserve) / avgLine
	if len(lines) > targetLines && targetLines >= 2 {
		headN := max(targetLines*6/10, 1)
		tailN := max(targetLines*4/10, 1)
		omitted := len(lines) - headN - tailN
		out := strings.Join(lines[:headN], "\n") +
			fmt.Sprintf("\n[%d lines truncated]\n", omitted) +
			strings.Join(lines[len(lines)-tailN:], "\n")
		if runeLen(out) <= maxChars {
			return out
		}
	}
	return sliceHeadTail(content, maxChars)
}

// sliceHeadTail keeps a 60/40 split of head and tail characters so that the
// result, marker included, fits in maxChars.
func sliceHeadTail(content string, maxChars int) string {
	const marker = "\n... [truncated]\n"
	avail := maxChars - runeLen(marker)
	if avail <= 0 {
		return clipRunes(content, maxChars)
	}
	r := []rune(content)
	if len(r) <= maxChars {
		return content
	}
	headN := avail * 6 / 10
	tailN := avail - headN
	return string(r[:headN]) + marker + string(r[len(r)-tailN:])
}
