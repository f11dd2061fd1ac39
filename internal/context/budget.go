package ctxengine

import (
	"unicode/utf8"

	"github.com/flemzord/ctxprune/pkg/message"
)

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a simple characters-per-token ratio.
// A ratio of ~4 works well for English; ~3 for French or other Latin languages.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0 (English approximation).
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns ceil(characters / CharsPerToken).
func (e *CharEstimator) Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	tokens := float64(n) / e.CharsPerToken
	whole := int(tokens)
	if float64(whole) < tokens {
		whole++
	}
	return whole
}

// HistoryBudget compares the estimated size of a history against the room
// the model leaves for it.
type HistoryBudget struct {
	WindowSize int // tokens available for history; 0 means unbounded
	Reserved   int // reserved for model reply
	History    int // tokens used by conversation history
}

// Used returns the total number of tokens consumed.
func (b HistoryBudget) Used() int {
	return b.History + b.Reserved
}

// Available returns the number of tokens remaining for additional content.
// Returns 0 if the budget is already exceeded or unbounded.
func (b HistoryBudget) Available() int {
	return max(b.WindowSize-b.Used(), 0)
}

// Exceeded reports whether a bounded budget is overrun.
func (b HistoryBudget) Exceeded() bool {
	return b.WindowSize > 0 && b.Used() > b.WindowSize
}

// imageTokens is a conservative estimate for "auto" detail images.
const imageTokens = 765

// EstimateMessages returns the total estimated tokens for a history.
func EstimateMessages(estimator TokenEstimator, msgs []message.PrunableMessage) int {
	total := 0
	for i := range msgs {
		// Per-message overhead: role tokens + formatting (~4 tokens).
		total += 4

		c := msgs[i].Content
		switch {
		case c.IsText():
			total += estimator.Estimate(c.TextValue())
		case c.IsBlocks():
			for _, b := range c.BlockList() {
				switch b.Type {
				case message.BlockText:
					total += estimator.Estimate(b.Text)
				case message.BlockImage:
					total += imageTokens
				default:
					total += estimator.Estimate(string(b.Data)) + estimator.Estimate(b.FileName)
				}
			}
		}
	}
	return total
}
