// Package message defines the conversation-history data contract shared by the
// pruning passes: roles, multimodal content and the PrunableMessage record.
package message

import (
	"slices"
	"time"
)

// Role identifies the author of a message in the conversation history.
type Role string

// Supported roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// PrunableMessage is one turn of the retained conversation history.
//
// Once HardCleared is true the content is terminal and no pass may change it.
// SoftTrimmed marks a one-time trim; an already trimmed message is never
// trimmed again.
type PrunableMessage struct {
	// Index is the position in history, stable for the duration of a pass.
	Index int `json:"index"`

	Role    Role    `json:"role"`
	Content Content `json:"content"`

	// OriginalLength is the character count of the content before any pass
	// touched it. Zero means "not recorded"; see Length.
	OriginalLength int `json:"original_length,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// ToolCallIDs are foreign keys into the TTL tracker's records.
	ToolCallIDs []string `json:"tool_call_ids,omitempty"`

	// ToolName names the tool that produced a tool-role message, when known.
	ToolName string `json:"tool_name,omitempty"`

	SoftTrimmed bool `json:"soft_trimmed,omitempty"`
	HardCleared bool `json:"hard_cleared,omitempty"`
}

// Length returns OriginalLength when recorded, otherwise the current
// character count of the content.
func (m PrunableMessage) Length() int {
	if m.OriginalLength > 0 {
		return m.OriginalLength
	}
	return m.Content.Len()
}

// HasToolCall reports whether id is one of the message's tool-call ids.
func (m PrunableMessage) HasToolCall(id string) bool {
	return slices.Contains(m.ToolCallIDs, id)
}

// Clone returns a deep copy of m. Passes clone before editing so that a
// caller still holding the input slice never observes a change.
func (m PrunableMessage) Clone() PrunableMessage {
	cp := m
	cp.Content = m.Content.Clone()
	if m.ToolCallIDs != nil {
		cp.ToolCallIDs = slices.Clone(m.ToolCallIDs)
	}
	return cp
}

// CloneAll deep-copies a history slice.
func CloneAll(msgs []PrunableMessage) []PrunableMessage {
	if msgs == nil {
		return nil
	}
	out := make([]PrunableMessage, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].Clone()
	}
	return out
}
