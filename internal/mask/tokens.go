package mask

import (
	"strings"
	"unicode/utf8"
)

// charsPerToken is the fixed estimation ratio. Masking decisions depend on
// it, so it is part of the package contract rather than a tunable.
const charsPerToken = 4

// EstimateTokens returns ceil(characters / 4) for s.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}

// runeLen returns the character count of s.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// clipRunes returns at most n characters of s.
func clipRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if runeLen(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// countLines returns the number of lines in s; an empty string has none.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// firstLine returns the first non-blank line of s, trimmed.
func firstLine(s string) string {
	for line := range strings.SplitSeq(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
