// Package ctxengine drives the pruning passes over a session: it masks tool
// output at ingestion, registers tool calls with the TTL tracker, and runs
// hard clearing followed by soft trimming over the accumulated history.
package ctxengine

import (
	"time"

	"github.com/flemzord/ctxprune/internal/prune"
)

// EngineConfig holds the tuning knobs for the context engine.
type EngineConfig struct {
	SoftTrim  prune.SoftTrimOptions
	HardClear prune.HardClearOptions

	// CleanupAfter is how long pruned tool-call records are kept before
	// Cleanup drops them.
	CleanupAfter time.Duration

	// MaxHistoryTokens bounds the history after a pass. 0 means unbounded;
	// an overrun is reported but never forces extra eviction.
	MaxHistoryTokens int

	// ReservedForReply is the number of tokens reserved for the model's response.
	ReservedForReply int

	// ExpiringThreshold is how far ahead Prune looks when reporting calls
	// about to expire.
	ExpiringThreshold time.Duration
}

// DefaultEngineConfig returns the stock pruning policy.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SoftTrim:  prune.DefaultSoftTrimOptions(),
		HardClear: prune.DefaultHardClearOptions(),
	}.withDefaults()
}

// withDefaults returns a copy of cfg with zero-valued numeric fields replaced
// by sensible defaults. Boolean policy flags are taken as given.
func (cfg EngineConfig) withDefaults() EngineConfig {
	if cfg.SoftTrim.MinPrunableChars == 0 {
		cfg.SoftTrim.MinPrunableChars = prune.DefaultMinPrunableChars
	}
	if cfg.SoftTrim.HeadChars == 0 {
		cfg.SoftTrim.HeadChars = prune.DefaultHeadChars
	}
	if cfg.SoftTrim.TailChars == 0 {
		cfg.SoftTrim.TailChars = prune.DefaultTailChars
	}
	if cfg.CleanupAfter == 0 {
		cfg.CleanupAfter = time.Hour
	}
	if cfg.ReservedForReply == 0 && cfg.MaxHistoryTokens > 0 {
		cfg.ReservedForReply = 1024
	}
	if cfg.ExpiringThreshold == 0 {
		cfg.ExpiringThreshold = 30 * time.Second
	}
	return cfg
}
