package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/flemzord/ctxprune/internal/cron"
	"github.com/flemzord/ctxprune/internal/mask"
)

// CurrentVersion is the only supported config format version.
const CurrentVersion = "1"

// ErrUnsupportedVersion is returned by Validate for unknown format versions.
var ErrUnsupportedVersion = errors.New("config: unsupported version")

// Validate checks the structural validity of a Config and reports every
// problem found, joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("%w %q (supported: %q)", ErrUnsupportedVersion, cfg.Version, CurrentVersion))
	}

	errs = append(errs, validateMasking(&cfg.Masking)...)
	errs = append(errs, validateRetention("soft_trim", cfg.SoftTrim.RetentionPolicy)...)
	errs = append(errs, nonNegative("soft_trim.min_prunable_chars", cfg.SoftTrim.MinPrunableChars)...)
	errs = append(errs, nonNegative("soft_trim.head_chars", cfg.SoftTrim.HeadChars)...)
	errs = append(errs, nonNegative("soft_trim.tail_chars", cfg.SoftTrim.TailChars)...)
	errs = append(errs, validateRetention("hard_clear", cfg.HardClear.RetentionPolicy)...)

	if cfg.HardClear.MaxMessageAge < 0 {
		errs = append(errs, fmt.Errorf("config: hard_clear.max_message_age must be non-negative, got %s", cfg.HardClear.MaxMessageAge))
	}
	if cfg.TTL.TTL < 0 {
		errs = append(errs, fmt.Errorf("config: ttl.ttl must be non-negative, got %s", cfg.TTL.TTL))
	}
	if cfg.TTL.CleanupAfter < 0 {
		errs = append(errs, fmt.Errorf("config: ttl.cleanup_after must be non-negative, got %s", cfg.TTL.CleanupAfter))
	}
	errs = append(errs, nonNegative("store.busy_timeout", cfg.Store.BusyTimeout)...)

	if r := cfg.Tracing.SampleRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("config: tracing.sample_rate must be within [0, 1], got %v", r))
	}

	if cfg.Janitor.Schedule != "" {
		if err := cron.ParseSchedule(cfg.Janitor.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: janitor.schedule: %w", err))
		}
	}

	for i, p := range cfg.Redact.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("config: redact.patterns[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

func validateMasking(m *MaskingConfig) []error {
	var errs []error
	errs = append(errs, nonNegative("masking.max_tokens_per_observation", m.MaxTokensPerObservation)...)
	errs = append(errs, nonNegative("masking.total_token_budget", m.TotalTokenBudget)...)
	errs = append(errs, nonNegative("masking.head_tail_lines", m.HeadTailLines)...)
	errs = append(errs, nonNegative("masking.window_size", m.WindowSize)...)

	if r := m.MinRelevanceThreshold; r != nil && (*r < 0 || *r > 1) {
		errs = append(errs, fmt.Errorf("config: masking.min_relevance_threshold must be within [0, 1], got %v", *r))
	}

	for name, w := range m.TypePriorities {
		if !mask.OutputType(name).Valid() {
			errs = append(errs, fmt.Errorf("config: masking.type_priorities: unknown output type %q", name))
			continue
		}
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Errorf("config: masking.type_priorities[%s] must be within [0, 1], got %v", name, w))
		}
	}

	for i, p := range m.ErrorPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("config: masking.error_patterns[%d]: %w", i, err))
		}
	}
	return errs
}

func validateRetention(section string, p RetentionPolicy) []error {
	if p.KeepLastNAssistant != nil && *p.KeepLastNAssistant < 0 {
		return []error{fmt.Errorf("config: %s.keep_last_n_assistant must be non-negative, got %d", section, *p.KeepLastNAssistant)}
	}
	return nil
}

func nonNegative(field string, v int) []error {
	if v < 0 {
		return []error{fmt.Errorf("config: %s must be non-negative, got %d", field, v)}
	}
	return nil
}
