// Package prune shrinks and evicts messages already in conversation history.
//
// Soft trimming keeps a message but cuts the interior of oversized text.
// Hard clearing replaces a message's content with a short placeholder and is
// terminal. Every pass returns new slices; inputs are never mutated.
package prune

import (
	"fmt"
	"unicode/utf8"

	"github.com/flemzord/ctxprune/pkg/message"
)

// Soft trim defaults.
const (
	DefaultMinPrunableChars   = 4000
	DefaultHeadChars          = 1500
	DefaultTailChars          = 1500
	DefaultKeepLastNAssistant = 3
)

// SoftTrimOptions controls which messages are trimmed and how much survives.
type SoftTrimOptions struct {
	// MinPrunableChars is the text length above which content is trimmed.
	MinPrunableChars int
	HeadChars        int
	TailChars        int

	KeepSystemMessages bool
	KeepUserMessages   bool
	// KeepLastNAssistant exempts the N most recent assistant messages.
	KeepLastNAssistant int
}

// DefaultSoftTrimOptions returns the stock soft trim policy.
func DefaultSoftTrimOptions() SoftTrimOptions {
	return SoftTrimOptions{
		MinPrunableChars:   DefaultMinPrunableChars,
		HeadChars:          DefaultHeadChars,
		TailChars:          DefaultTailChars,
		KeepSystemMessages: true,
		KeepUserMessages:   true,
		KeepLastNAssistant: DefaultKeepLastNAssistant,
	}
}

// SoftTrimResult is the outcome of SoftTrimMessages.
type SoftTrimResult struct {
	Messages     []message.PrunableMessage
	TrimmedCount int
	// TotalRemoved counts characters removed across all messages.
	TotalRemoved int
}

// SoftTrimString keeps headChars from the start and tailChars from the end of
// s, joined by a marker naming the number of characters dropped. Strings that
// would not get shorter are returned unchanged.
func SoftTrimString(s string, headChars, tailChars int) string {
	headChars = max(headChars, 0)
	tailChars = max(tailChars, 0)
	n := utf8.RuneCountInString(s)
	if n <= headChars+tailChars {
		return s
	}
	r := []rune(s)
	omitted := n - headChars - tailChars
	out := string(r[:headChars]) +
		fmt.Sprintf("\n\n... [%d chars trimmed] ...\n\n", omitted) +
		string(r[n-tailChars:])
	if utf8.RuneCountInString(out) >= n {
		return s
	}
	return out
}

// SoftTrimContent trims text longer than opts.MinPrunableChars. Null content
// passes through, and in multimodal content only text blocks are touched.
// It returns the new content and the number of characters removed.
func SoftTrimContent(c message.Content, opts SoftTrimOptions) (message.Content, int) {
	switch {
	case c.IsText():
		trimmed, removed := trimText(c.TextValue(), opts)
		if removed == 0 {
			return c, 0
		}
		return message.Text(trimmed), removed
	case c.IsBlocks():
		blocks := c.BlockList()
		total := 0
		for i := range blocks {
			if !blocks[i].IsText() {
				continue
			}
			trimmed, removed := trimText(blocks[i].Text, opts)
			if removed > 0 {
				blocks[i].Text = trimmed
				total += removed
			}
		}
		if total == 0 {
			return c, 0
		}
		return message.Blocks(blocks...), total
	default:
		return c, 0
	}
}

func trimText(s string, opts SoftTrimOptions) (string, int) {
	n := utf8.RuneCountInString(s)
	if n <= opts.MinPrunableChars {
		return s, 0
	}
	out := SoftTrimString(s, opts.HeadChars, opts.TailChars)
	return out, n - utf8.RuneCountInString(out)
}

// SoftTrimMessage trims a copy of msg. The copy is flagged SoftTrimmed only
// when its content actually shrank; messages already trimmed or cleared are
// returned unchanged.
func SoftTrimMessage(msg message.PrunableMessage, opts SoftTrimOptions) (message.PrunableMessage, int) {
	out := msg.Clone()
	if msg.SoftTrimmed || msg.HardCleared {
		return out, 0
	}
	content, removed := SoftTrimContent(msg.Content, opts)
	if removed == 0 {
		return out, 0
	}
	if out.OriginalLength <= 0 {
		out.OriginalLength = msg.Content.Len()
	}
	out.Content = content
	out.SoftTrimmed = true
	return out, removed
}

// ShouldSoftTrim reports whether m is eligible for trimming within all.
func ShouldSoftTrim(m message.PrunableMessage, all []message.PrunableMessage, opts SoftTrimOptions) bool {
	return shouldSoftTrim(m, recentAssistant(all, opts.KeepLastNAssistant), opts)
}

func shouldSoftTrim(m message.PrunableMessage, protected map[int]struct{}, opts SoftTrimOptions) bool {
	if m.SoftTrimmed || m.HardCleared {
		return false
	}
	if exempt(m, protected, opts.KeepSystemMessages, opts.KeepUserMessages) {
		return false
	}
	return longestText(m.Content) > opts.MinPrunableChars
}

// SoftTrimMessages trims every eligible message in order.
func SoftTrimMessages(msgs []message.PrunableMessage, opts SoftTrimOptions) SoftTrimResult {
	protected := recentAssistant(msgs, opts.KeepLastNAssistant)
	res := SoftTrimResult{Messages: make([]message.PrunableMessage, 0, len(msgs))}
	for _, m := range msgs {
		if !shouldSoftTrim(m, protected, opts) {
			res.Messages = append(res.Messages, m.Clone())
			continue
		}
		trimmed, removed := SoftTrimMessage(m, opts)
		if removed > 0 {
			res.TrimmedCount++
			res.TotalRemoved += removed
		}
		res.Messages = append(res.Messages, trimmed)
	}
	return res
}

// longestText is the length of the largest trimmable text in c.
func longestText(c message.Content) int {
	switch {
	case c.IsText():
		return utf8.RuneCountInString(c.TextValue())
	case c.IsBlocks():
		longest := 0
		for _, b := range c.BlockList() {
			if b.IsText() {
				longest = max(longest, utf8.RuneCountInString(b.Text))
			}
		}
		return longest
	}
	return 0
}
