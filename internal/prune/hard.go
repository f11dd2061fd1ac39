package prune

import (
	"fmt"
	"slices"
	"time"

	"github.com/flemzord/ctxprune/pkg/message"
)

// ExpiredCall identifies a tool call whose result may be evicted.
type ExpiredCall struct {
	ToolCallID string
	ToolName   string
}

// HardClearOptions controls age-based clearing.
type HardClearOptions struct {
	// MaxMessageAge disables age-based clearing when <= 0.
	MaxMessageAge time.Duration

	KeepSystemMessages bool
	KeepUserMessages   bool
	KeepLastNAssistant int

	// Now is the reference instant; zero means time.Now.
	Now time.Time
}

// DefaultHardClearOptions returns the stock policy, with age-based clearing
// disabled.
func DefaultHardClearOptions() HardClearOptions {
	return HardClearOptions{
		KeepSystemMessages: true,
		KeepUserMessages:   true,
		KeepLastNAssistant: DefaultKeepLastNAssistant,
	}
}

func (o HardClearOptions) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// HardClearResult is the outcome of a clearing pass.
type HardClearResult struct {
	Messages     []message.PrunableMessage
	ClearedCount int
	// ClearedToolCallIDs lists, without duplicates, the tool-call ids of the
	// messages cleared by this pass.
	ClearedToolCallIDs []string
}

func toolLabel(name string) string {
	if name == "" {
		return "tool"
	}
	return name
}

// ToolResultPlaceholder formats the text left behind by an evicted tool result.
func ToolResultPlaceholder(toolName, toolCallID string, originalLength int) string {
	return fmt.Sprintf("[Tool result cleared: %s (id: %s), %d chars]", toolLabel(toolName), toolCallID, originalLength)
}

// AssistantPlaceholder formats the text left behind by an evicted assistant
// message. summary is optional.
func AssistantPlaceholder(index, originalLength int, summary string) string {
	if summary == "" {
		return fmt.Sprintf("[Assistant message #%d cleared, %d chars]", index, originalLength)
	}
	return fmt.Sprintf("[Assistant message #%d cleared, %d chars: %s]", index, originalLength, summary)
}

// ToolCallPlaceholder formats the text left behind by an evicted tool call
// request.
func ToolCallPlaceholder(toolName, toolCallID string) string {
	return fmt.Sprintf("[Tool call: %s (id: %s)]", toolLabel(toolName), toolCallID)
}

// MessagePlaceholder formats the text left behind by any other evicted
// message.
func MessagePlaceholder(role message.Role, index, originalLength int) string {
	return fmt.Sprintf("[%s message #%d cleared, %d chars]", role, index, originalLength)
}

// HardClearMessage returns a copy of msg whose content is replaced by
// placeholder. Already cleared messages come back unchanged.
func HardClearMessage(msg message.PrunableMessage, placeholder string) message.PrunableMessage {
	out := msg.Clone()
	if msg.HardCleared {
		return out
	}
	out.OriginalLength = msg.Length()
	out.Content = message.Text(placeholder)
	out.HardCleared = true
	out.SoftTrimmed = false
	return out
}

// HardClearExpiredToolCalls clears every message referencing an expired
// tool call.
func HardClearExpiredToolCalls(msgs []message.PrunableMessage, expired []ExpiredCall) HardClearResult {
	names := make(map[string]string, len(expired))
	for _, e := range expired {
		names[e.ToolCallID] = e.ToolName
	}

	res := HardClearResult{Messages: make([]message.PrunableMessage, 0, len(msgs))}
	for _, m := range msgs {
		hit := expiredIDs(m, names)
		if m.HardCleared || len(hit) == 0 {
			res.Messages = append(res.Messages, m.Clone())
			continue
		}
		name := names[hit[0]]
		if name == "" {
			name = m.ToolName
		}
		var text string
		if m.Role == message.RoleAssistant {
			text = ToolCallPlaceholder(name, hit[0])
		} else {
			text = ToolResultPlaceholder(name, hit[0], m.Length())
		}
		res.Messages = append(res.Messages, HardClearMessage(m, text))
		res.ClearedCount++
		res.ClearedToolCallIDs = appendUnique(res.ClearedToolCallIDs, hit...)
	}
	return res
}

func expiredIDs(m message.PrunableMessage, names map[string]string) []string {
	var hit []string
	for _, id := range m.ToolCallIDs {
		if _, ok := names[id]; ok {
			hit = append(hit, id)
		}
	}
	return hit
}

// HardClearOldMessages clears messages older than opts.MaxMessageAge,
// honoring the role exemptions. Messages without a timestamp are never old.
func HardClearOldMessages(msgs []message.PrunableMessage, opts HardClearOptions) HardClearResult {
	res := HardClearResult{Messages: message.CloneAll(msgs)}
	if opts.MaxMessageAge <= 0 {
		return res
	}
	if res.Messages == nil {
		res.Messages = []message.PrunableMessage{}
	}
	now := opts.now()
	protected := recentAssistant(msgs, opts.KeepLastNAssistant)
	for i, m := range res.Messages {
		if m.HardCleared || !tooOld(m, opts.MaxMessageAge, now) ||
			exempt(m, protected, opts.KeepSystemMessages, opts.KeepUserMessages) {
			continue
		}
		res.Messages[i] = HardClearMessage(m, agePlaceholder(m))
		res.ClearedCount++
		res.ClearedToolCallIDs = appendUnique(res.ClearedToolCallIDs, m.ToolCallIDs...)
	}
	return res
}

func tooOld(m message.PrunableMessage, maxAge time.Duration, now time.Time) bool {
	return !m.Timestamp.IsZero() && now.Sub(m.Timestamp) > maxAge
}

func agePlaceholder(m message.PrunableMessage) string {
	switch m.Role {
	case message.RoleTool:
		id := ""
		if len(m.ToolCallIDs) > 0 {
			id = m.ToolCallIDs[0]
		}
		return ToolResultPlaceholder(m.ToolName, id, m.Length())
	case message.RoleAssistant:
		return AssistantPlaceholder(m.Index, m.Length(), "")
	}
	return MessagePlaceholder(m.Role, m.Index, m.Length())
}

// ShouldHardClear reports whether m would be cleared given the expired
// tool-call ids and the age policy.
func ShouldHardClear(m message.PrunableMessage, expired []string, all []message.PrunableMessage, opts HardClearOptions) bool {
	if m.HardCleared {
		return false
	}
	for _, id := range m.ToolCallIDs {
		if slices.Contains(expired, id) {
			return true
		}
	}
	if opts.MaxMessageAge <= 0 || !tooOld(m, opts.MaxMessageAge, opts.now()) {
		return false
	}
	return !exempt(m, recentAssistant(all, opts.KeepLastNAssistant), opts.KeepSystemMessages, opts.KeepUserMessages)
}

// ApplyHardClear runs expired-call clearing followed by age-based clearing.
func ApplyHardClear(msgs []message.PrunableMessage, expired []ExpiredCall, opts HardClearOptions) HardClearResult {
	first := HardClearExpiredToolCalls(msgs, expired)
	second := HardClearOldMessages(first.Messages, opts)
	return HardClearResult{
		Messages:           second.Messages,
		ClearedCount:       first.ClearedCount + second.ClearedCount,
		ClearedToolCallIDs: appendUnique(first.ClearedToolCallIDs, second.ClearedToolCallIDs...),
	}
}

func appendUnique(dst []string, ids ...string) []string {
	for _, id := range ids {
		if !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}
