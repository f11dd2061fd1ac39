package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	ctxengine "github.com/flemzord/ctxprune/internal/context"
	"github.com/flemzord/ctxprune/internal/mask"
	"github.com/flemzord/ctxprune/internal/prune"
	"github.com/flemzord/ctxprune/internal/redact"
)

// Section defaults not owned by a domain package.
const (
	DefaultTTL              = 5 * time.Minute
	DefaultCleanupAfter     = time.Hour
	DefaultMetricsNamespace = "ctxprune"
	DefaultJanitorSchedule  = "*/10 * * * *"
)

// MaskConfig overlays the masking section on the built-in masking policy.
func (c *Config) MaskConfig() (mask.Config, error) {
	m := c.Masking
	out := mask.DefaultConfig()

	if m.Enabled != nil {
		out.Enabled = *m.Enabled
	}
	if m.MaxTokensPerObservation > 0 {
		out.MaxTokensPerObservation = m.MaxTokensPerObservation
	}
	if m.TotalTokenBudget > 0 {
		out.TotalTokenBudget = m.TotalTokenBudget
	}
	if m.MinRelevanceThreshold != nil {
		out.MinRelevanceThreshold = *m.MinRelevanceThreshold
	}
	if len(m.TypePriorities) > 0 {
		table := mask.DefaultTypePriorityMap()
		for name, w := range m.TypePriorities {
			table[mask.OutputType(name)] = w
		}
		p, err := mask.NewTypePriorities(table)
		if err != nil {
			return mask.Config{}, fmt.Errorf("config: masking.type_priorities: %w", err)
		}
		out.TypePriorities = p
	}
	if len(m.ImportantKeywords) > 0 {
		out.ImportantKeywords = append([]string(nil), m.ImportantKeywords...)
	}
	if len(m.ErrorPatterns) > 0 {
		out.ErrorPatterns = make([]*regexp.Regexp, 0, len(m.ErrorPatterns))
		for i, p := range m.ErrorPatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return mask.Config{}, fmt.Errorf("config: masking.error_patterns[%d]: %w", i, err)
			}
			out.ErrorPatterns = append(out.ErrorPatterns, re)
		}
	}
	if m.KeepPartialContent != nil {
		out.KeepPartialContent = *m.KeepPartialContent
	}
	if m.HeadTailLines > 0 {
		out.HeadTailLines = m.HeadTailLines
	}
	if m.WindowSize > 0 {
		out.WindowSize = m.WindowSize
	}
	return out, nil
}

func (p RetentionPolicy) resolve() (keepSystem, keepUser bool, lastN int) {
	keepSystem, keepUser, lastN = true, true, prune.DefaultKeepLastNAssistant
	if p.KeepSystemMessages != nil {
		keepSystem = *p.KeepSystemMessages
	}
	if p.KeepUserMessages != nil {
		keepUser = *p.KeepUserMessages
	}
	if p.KeepLastNAssistant != nil {
		lastN = *p.KeepLastNAssistant
	}
	return keepSystem, keepUser, lastN
}

// SoftTrimOptions resolves the soft_trim section.
func (c *Config) SoftTrimOptions() prune.SoftTrimOptions {
	opts := prune.DefaultSoftTrimOptions()
	opts.KeepSystemMessages, opts.KeepUserMessages, opts.KeepLastNAssistant = c.SoftTrim.resolve()
	if c.SoftTrim.MinPrunableChars > 0 {
		opts.MinPrunableChars = c.SoftTrim.MinPrunableChars
	}
	if c.SoftTrim.HeadChars > 0 {
		opts.HeadChars = c.SoftTrim.HeadChars
	}
	if c.SoftTrim.TailChars > 0 {
		opts.TailChars = c.SoftTrim.TailChars
	}
	return opts
}

// HardClearOptions resolves the hard_clear section.
func (c *Config) HardClearOptions() prune.HardClearOptions {
	opts := prune.DefaultHardClearOptions()
	opts.KeepSystemMessages, opts.KeepUserMessages, opts.KeepLastNAssistant = c.HardClear.resolve()
	opts.MaxMessageAge = c.HardClear.MaxMessageAge
	return opts
}

// TrackerTTL returns the tool-call time-to-live.
func (c *Config) TrackerTTL() time.Duration {
	if c.TTL.TTL > 0 {
		return c.TTL.TTL
	}
	return DefaultTTL
}

// EngineConfig assembles the pruning engine policy.
func (c *Config) EngineConfig() ctxengine.EngineConfig {
	cleanup := c.TTL.CleanupAfter
	if cleanup <= 0 {
		cleanup = DefaultCleanupAfter
	}
	return ctxengine.EngineConfig{
		SoftTrim:     c.SoftTrimOptions(),
		HardClear:    c.HardClearOptions(),
		CleanupAfter: cleanup,
	}
}

// MetricsNamespace returns the Prometheus namespace.
func (c *Config) MetricsNamespace() string {
	if c.Metrics.Namespace != "" {
		return c.Metrics.Namespace
	}
	return DefaultMetricsNamespace
}

// JanitorSchedule returns the cleanup job's cron expression.
func (c *Config) JanitorSchedule() string {
	if c.Janitor.Schedule != "" {
		return c.Janitor.Schedule
	}
	return DefaultJanitorSchedule
}

// RedactEnabled reports whether observations are scrubbed before masking.
func (c *Config) RedactEnabled() bool {
	return c.Redact.Enabled == nil || *c.Redact.Enabled
}

// Redactor builds the credential redactor from the redact section. Values
// of the listed environment variables that are unset or empty are skipped.
func (c *Config) Redactor() (*redact.Redactor, error) {
	extra := make([]*regexp.Regexp, 0, len(c.Redact.Patterns))
	for i, p := range c.Redact.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("config: redact.patterns[%d]: %w", i, err)
		}
		extra = append(extra, re)
	}
	r := redact.New(extra...)
	for _, name := range c.Redact.Env {
		r.AddLiteral(os.Getenv(name))
	}
	return r, nil
}
