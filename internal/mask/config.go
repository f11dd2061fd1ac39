package mask

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// ErrMissingTypePriority is returned by NewTypePriorities when a weight table
// does not cover every output type.
var ErrMissingTypePriority = errors.New("mask: missing type priority")

// Default values for Config.
const (
	DefaultMaxTokensPerObservation = 2000
	DefaultTotalTokenBudget        = 16000
	DefaultMinRelevanceThreshold   = 0.3
	DefaultHeadTailLines           = 10
	DefaultWindowSize              = 5
)

// TypePriorities holds one weight in [0,1] per output type. Only
// NewTypePriorities and DefaultTypePriorities build a populated table, so a
// table in use always covers all eight types.
type TypePriorities struct {
	weights [numOutputTypes]float64
}

// NewTypePriorities builds a weight table from m. Every output type must be
// present; weights are clamped into [0,1].
func NewTypePriorities(m map[OutputType]float64) (TypePriorities, error) {
	var p TypePriorities
	var missing []error
	for _, t := range OutputTypes() {
		w, ok := m[t]
		if !ok {
			missing = append(missing, fmt.Errorf("%w: %s", ErrMissingTypePriority, t))
			continue
		}
		p.weights[t.index()] = clamp01(w)
	}
	for t := range m {
		if !t.Valid() {
			missing = append(missing, fmt.Errorf("mask: unknown output type %q in priorities", t))
		}
	}
	if len(missing) > 0 {
		return TypePriorities{}, errors.Join(missing...)
	}
	return p, nil
}

// DefaultTypePriorities returns the built-in weight table.
func DefaultTypePriorities() TypePriorities {
	p, _ := NewTypePriorities(DefaultTypePriorityMap())
	return p
}

// DefaultTypePriorityMap returns the built-in weights as a map, for callers
// that overlay partial configuration on top of the defaults.
func DefaultTypePriorityMap() map[OutputType]float64 {
	return map[OutputType]float64{
		OutputError:         1.0,
		OutputCode:          0.9,
		OutputFileContent:   0.8,
		OutputSearchResult:  0.7,
		OutputCommandOutput: 0.6,
		OutputLog:           0.5,
		OutputMetadata:      0.4,
		OutputUnknown:       0.5,
	}
}

// Weight returns the priority of t. Unrecognized types use the weight of
// OutputUnknown.
func (p TypePriorities) Weight(t OutputType) float64 {
	return p.weights[t.index()]
}

// Map returns the table as a map keyed by output type.
func (p TypePriorities) Map() map[OutputType]float64 {
	m := make(map[OutputType]float64, numOutputTypes)
	for _, t := range OutputTypes() {
		m[t] = p.weights[t.index()]
	}
	return m
}

// Config is the masking policy. It is built once and treated as read-only
// for the duration of a masking pass; NewMasker takes its own copy.
type Config struct {
	Enabled bool

	// MaxTokensPerObservation caps any single retained output.
	MaxTokensPerObservation int

	// TotalTokenBudget is shared by all observations of a batch.
	TotalTokenBudget int

	// MinRelevanceThreshold: outputs scoring below it are masked entirely.
	MinRelevanceThreshold float64

	TypePriorities TypePriorities

	// ImportantKeywords are matched case-insensitively.
	ImportantKeywords []string

	// ErrorPatterns are checked in order; the first match counts.
	ErrorPatterns []*regexp.Regexp

	// KeepPartialContent keeps head and tail when truncating instead of
	// replacing the content with a one-line notice.
	KeepPartialContent bool

	// HeadTailLines is the number of lines kept verbatim at each end during
	// partial extraction.
	HeadTailLines int

	// WindowSize is the default number of recent observations kept in full
	// by sliding-window masking.
	WindowSize int
}

// DefaultImportantKeywords returns the built-in keyword list.
func DefaultImportantKeywords() []string {
	return []string{
		"error", "warning", "fail", "exception", "critical",
		"todo", "fixme", "bug", "deprecated", "important",
	}
}

// DefaultErrorPatterns returns the built-in error patterns.
func DefaultErrorPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)\berror\b`),
		regexp.MustCompile(`(?i)\bexception\b`),
		regexp.MustCompile(`(?i)\bfailed\b`),
		regexp.MustCompile(`(?i)\bfatal\b`),
		regexp.MustCompile(`(?i)traceback \(most recent call last\)`),
		regexp.MustCompile(`(?m)^panic: `),
		regexp.MustCompile(`(?i)segmentation fault`),
		regexp.MustCompile(`(?i)permission denied`),
	}
}

// DefaultConfig returns the built-in masking policy.
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		MaxTokensPerObservation: DefaultMaxTokensPerObservation,
		TotalTokenBudget:        DefaultTotalTokenBudget,
		MinRelevanceThreshold:   DefaultMinRelevanceThreshold,
		TypePriorities:          DefaultTypePriorities(),
		ImportantKeywords:       DefaultImportantKeywords(),
		ErrorPatterns:           DefaultErrorPatterns(),
		KeepPartialContent:      true,
		HeadTailLines:           DefaultHeadTailLines,
		WindowSize:              DefaultWindowSize,
	}
}

// withDefaults returns a copy of cfg with non-positive sizes replaced by
// defaults and slices detached from the caller's.
func (cfg Config) withDefaults() Config {
	if cfg.MaxTokensPerObservation <= 0 {
		cfg.MaxTokensPerObservation = DefaultMaxTokensPerObservation
	}
	if cfg.TotalTokenBudget < 0 {
		cfg.TotalTokenBudget = 0
	}
	if cfg.HeadTailLines <= 0 {
		cfg.HeadTailLines = DefaultHeadTailLines
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	cfg.ImportantKeywords = slices.Clone(cfg.ImportantKeywords)
	cfg.ErrorPatterns = slices.Clone(cfg.ErrorPatterns)
	return cfg
}
