// Package redact scrubs credentials out of tool output before it is fed back
// into the model context, and out of log records.
package redact

import (
	"regexp"
	"strings"
	"sync"

	"github.com/flemzord/ctxprune/internal/mask"
)

// Placeholder replaces every redacted secret.
const Placeholder = "***REDACTED***"

// Redactor replaces secrets in strings. It matches both regex patterns for
// well-known key formats and literal values such as credentials read from
// the environment. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// New returns a Redactor with the default key patterns plus extra.
func New(extra ...*regexp.Regexp) *Redactor {
	return &Redactor{patterns: append(DefaultPatterns(), extra...)}
}

// AddLiteral registers a literal secret value. Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact returns s with every known secret replaced by Placeholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	// Literals first: a pattern replacement could split a literal.
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, Placeholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	return s
}

// Observations redacts the input and output of each observation in place
// and returns how many were changed.
func (r *Redactor) Observations(obs []mask.Observation) int {
	changed := 0
	for i := range obs {
		out := r.Redact(obs[i].Output)
		in := r.Redact(obs[i].Input)
		if out != obs[i].Output || in != obs[i].Input {
			obs[i].Output, obs[i].Input = out, in
			changed++
		}
	}
	return changed
}

// DefaultPatterns returns compiled regex patterns for common API key formats.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic: sk-ant-...
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-_]{20,}`),
		// OpenAI: sk-...
		regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
		// GitHub: ghp_, gho_, ghs_, github_pat_
		regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
		// AWS Access Key ID
		regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		// Slack bot and user tokens
		regexp.MustCompile(`xox[bp]-[0-9]+-[a-zA-Z0-9\-]+`),
		// Authorization headers
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]{20,}=*`),
	}
}
