package mask

import (
	"regexp"
	"strings"
)

var logLinePattern = regexp.MustCompile(`(?i)^\[?(?:\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}|\d{2}:\d{2}:\d{2}|(?:TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL)\b)`)

// toolNameRules map tool-name fragments to output types, checked in order.
var toolNameRules = []struct {
	fragments []string
	typ       OutputType
}{
	{[]string{"read", "file"}, OutputFileContent},
	{[]string{"search", "grep", "find"}, OutputSearchResult},
	{[]string{"bash", "exec", "run"}, OutputCommandOutput},
	{[]string{"list", "info", "status"}, OutputMetadata},
}

// DetectOutputType classifies content produced by toolName. Error patterns
// win, then tool-name keywords, then the shape of the first line.
func (m *Masker) DetectOutputType(toolName, content string) OutputType {
	if matchesAny(m.config.ErrorPatterns, content) {
		return OutputError
	}

	name := strings.ToLower(toolName)
	for _, rule := range toolNameRules {
		for _, frag := range rule.fragments {
			if strings.Contains(name, frag) {
				return rule.typ
			}
		}
	}

	first := firstLine(content)
	switch {
	case first == "":
		return OutputUnknown
	case declarationPattern.MatchString(first):
		return OutputCode
	case logLinePattern.MatchString(first):
		return OutputLog
	}
	return OutputUnknown
}
