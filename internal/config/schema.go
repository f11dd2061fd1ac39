// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for ctxprune.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Masking   MaskingConfig   `yaml:"masking"`
	SoftTrim  SoftTrimConfig  `yaml:"soft_trim"`
	HardClear HardClearConfig `yaml:"hard_clear"`
	TTL       TTLConfig       `yaml:"ttl"`
	Store     StoreConfig     `yaml:"store"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Janitor   JanitorConfig   `yaml:"janitor"`
	Redact    RedactConfig    `yaml:"redact"`
}

// MaskingConfig configures the observation masker.
type MaskingConfig struct {
	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled"`

	MaxTokensPerObservation int      `yaml:"max_tokens_per_observation"`
	TotalTokenBudget        int      `yaml:"total_token_budget"`
	MinRelevanceThreshold   *float64 `yaml:"min_relevance_threshold"`

	// TypePriorities overrides individual entries of the default table.
	// Keys must be known output types.
	TypePriorities map[string]float64 `yaml:"type_priorities,omitempty"`

	// ImportantKeywords replaces the default keyword list when non-empty.
	ImportantKeywords []string `yaml:"important_keywords,omitempty"`

	// ErrorPatterns replaces the default error regexes when non-empty.
	ErrorPatterns []string `yaml:"error_patterns,omitempty"`

	// KeepPartialContent defaults to true.
	KeepPartialContent *bool `yaml:"keep_partial_content"`
	HeadTailLines      int   `yaml:"head_tail_lines"`
	WindowSize         int   `yaml:"window_size"`
}

// RetentionPolicy holds the role exemptions shared by soft trimming and
// hard clearing. Unset flags default to true.
type RetentionPolicy struct {
	KeepSystemMessages *bool `yaml:"keep_system_messages"`
	KeepUserMessages   *bool `yaml:"keep_user_messages"`
	KeepLastNAssistant *int  `yaml:"keep_last_n_assistant"`
}

// SoftTrimConfig configures the soft trimmer.
type SoftTrimConfig struct {
	RetentionPolicy `yaml:",inline"`

	MinPrunableChars int `yaml:"min_prunable_chars"`
	HeadChars        int `yaml:"head_chars"`
	TailChars        int `yaml:"tail_chars"`
}

// HardClearConfig configures age-based hard clearing. Expired tool calls are
// always cleared.
type HardClearConfig struct {
	RetentionPolicy `yaml:",inline"`

	// MaxMessageAge disables age-based clearing when zero.
	MaxMessageAge time.Duration `yaml:"max_message_age"`
}

// TTLConfig configures the tool-call tracker.
type TTLConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	CleanupAfter time.Duration `yaml:"cleanup_after"`
}

// StoreConfig configures tracker persistence.
type StoreConfig struct {
	// Path is the database file path. Empty disables persistence.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	ServiceName string            `yaml:"service_name"`
	SampleRate  float64           `yaml:"sample_rate"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// MetricsConfig configures Prometheus instrumentation.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`

	// Textfile, when set, is where the CLI writes the registry in the text
	// exposition format after each command.
	Textfile string `yaml:"textfile"`
}

// JanitorConfig configures the background cleanup job.
type JanitorConfig struct {
	// Schedule is a cron expression. Defaults to every ten minutes.
	Schedule string `yaml:"schedule"`
}

// RedactConfig configures credential scrubbing of tool output and logs.
type RedactConfig struct {
	// Enabled scrubs observation input and output before masking. Log
	// records are always scrubbed. Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// Patterns are extra regular expressions whose matches are redacted.
	Patterns []string `yaml:"patterns,omitempty"`

	// Env names environment variables whose values are redacted verbatim.
	Env []string `yaml:"env,omitempty"`
}
