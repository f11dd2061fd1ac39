package prune_test

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/ctxprune/internal/prune"
	"github.com/flemzord/ctxprune/pkg/message"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func toolMsg(index int, id, name, text string) message.PrunableMessage {
	return message.PrunableMessage{
		Index:       index,
		Role:        message.RoleTool,
		Content:     message.Text(text),
		ToolCallIDs: []string{id},
		ToolName:    name,
	}
}

// ---------------------------------------------------------------------------
// Placeholders
// ---------------------------------------------------------------------------

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want []string
	}{
		{"tool_result", prune.ToolResultPlaceholder("read_file", "tc-9", 4200), []string{"read_file", "tc-9", "4200"}},
		{"tool_result_unnamed", prune.ToolResultPlaceholder("", "tc-1", 3), []string{"tool", "tc-1"}},
		{"assistant", prune.AssistantPlaceholder(7, 900, ""), []string{"#7", "900"}},
		{"assistant_summary", prune.AssistantPlaceholder(7, 900, "planned refactor"), []string{"#7", "planned refactor"}},
		{"tool_call", prune.ToolCallPlaceholder("bash", "tc-2"), []string{"bash", "tc-2"}},
		{"message", prune.MessagePlaceholder(message.RoleUser, 3, 12), []string{"user", "#3", "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for _, w := range tt.want {
				if !strings.Contains(tt.got, w) {
					t.Errorf("%q does not contain %q", tt.got, w)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// HardClearMessage
// ---------------------------------------------------------------------------

func TestHardClearMessage_Idempotent(t *testing.T) {
	t.Parallel()

	in := toolMsg(2, "tc-1", "bash", strings.Repeat("o", 120))
	in.SoftTrimmed = true
	in.OriginalLength = 5000

	once := prune.HardClearMessage(in, "[gone]")
	if !once.HardCleared || once.SoftTrimmed {
		t.Fatalf("flags = cleared %v trimmed %v", once.HardCleared, once.SoftTrimmed)
	}
	if once.Content.TextValue() != "[gone]" || once.OriginalLength != 5000 {
		t.Errorf("once = %+v", once)
	}

	twice := prune.HardClearMessage(once, "[different]")
	if !twice.Content.Equal(once.Content) || twice.HardCleared != once.HardCleared ||
		twice.SoftTrimmed != once.SoftTrimmed || twice.OriginalLength != once.OriginalLength {
		t.Errorf("second clear changed state: %+v", twice)
	}
	if in.HardCleared {
		t.Error("input mutated")
	}
}

// ---------------------------------------------------------------------------
// HardClearExpiredToolCalls
// ---------------------------------------------------------------------------

func TestHardClearExpiredToolCalls(t *testing.T) {
	t.Parallel()

	call := message.PrunableMessage{Index: 1, Role: message.RoleAssistant, Content: message.Text("calling"), ToolCallIDs: []string{"a", "b"}}
	history := []message.PrunableMessage{
		{Index: 0, Role: message.RoleUser, Content: message.Text("go")},
		call,
		toolMsg(2, "a", "", "result a"),
		toolMsg(3, "b", "grep", "result b"),
		toolMsg(4, "c", "bash", "result c"),
	}
	expired := []prune.ExpiredCall{{ToolCallID: "a", ToolName: "read_file"}, {ToolCallID: "b", ToolName: "grep"}}

	res := prune.HardClearExpiredToolCalls(history, expired)

	if res.ClearedCount != 3 {
		t.Errorf("ClearedCount = %d, want 3", res.ClearedCount)
	}
	if !slices.Equal(res.ClearedToolCallIDs, []string{"a", "b"}) {
		t.Errorf("ClearedToolCallIDs = %v", res.ClearedToolCallIDs)
	}
	if got := res.Messages[1].Content.TextValue(); got != prune.ToolCallPlaceholder("read_file", "a") {
		t.Errorf("assistant placeholder = %q", got)
	}
	if got := res.Messages[2].Content.TextValue(); got != prune.ToolResultPlaceholder("read_file", "a", 8) {
		t.Errorf("tool placeholder = %q", got)
	}
	if res.Messages[0].HardCleared || res.Messages[4].HardCleared {
		t.Error("unrelated messages cleared")
	}
	for i := range history {
		if res.Messages[i].Index != history[i].Index {
			t.Fatalf("order changed at %d", i)
		}
	}

	again := prune.HardClearExpiredToolCalls(res.Messages, expired)
	if again.ClearedCount != 0 || len(again.ClearedToolCallIDs) != 0 {
		t.Errorf("second pass cleared %d / %v", again.ClearedCount, again.ClearedToolCallIDs)
	}
}

// ---------------------------------------------------------------------------
// HardClearOldMessages
// ---------------------------------------------------------------------------

func agedHistory() []message.PrunableMessage {
	old := now.Add(-2 * time.Hour)
	msgs := []message.PrunableMessage{
		{Index: 0, Role: message.RoleSystem, Content: message.Text("sys")},
		{Index: 1, Role: message.RoleUser, Content: message.Text("ask")},
		{Index: 2, Role: message.RoleAssistant, Content: message.Text("old answer")},
		toolMsg(3, "t1", "bash", "old output"),
		{Index: 4, Role: message.RoleAssistant, Content: message.Text("recent answer")},
		toolMsg(5, "t2", "bash", "fresh output"),
		{Index: 6, Role: message.RoleAssistant, Content: message.Text("no timestamp")},
	}
	for i := range 5 {
		msgs[i].Timestamp = old
	}
	msgs[5].Timestamp = now.Add(-time.Minute)
	return msgs
}

func TestHardClearOldMessages(t *testing.T) {
	t.Parallel()

	opts := prune.HardClearOptions{
		MaxMessageAge:      time.Hour,
		KeepSystemMessages: true,
		KeepUserMessages:   true,
		KeepLastNAssistant: 2,
		Now:                now,
	}
	res := prune.HardClearOldMessages(agedHistory(), opts)

	want := map[int]bool{2: true, 3: true}
	for i, m := range res.Messages {
		if m.HardCleared != want[i] {
			t.Errorf("message %d (%s) HardCleared = %v, want %v", i, m.Role, m.HardCleared, want[i])
		}
	}
	if !slices.Equal(res.ClearedToolCallIDs, []string{"t1"}) {
		t.Errorf("ClearedToolCallIDs = %v", res.ClearedToolCallIDs)
	}

	opts.KeepLastNAssistant = 1
	opts.KeepUserMessages = false
	res = prune.HardClearOldMessages(agedHistory(), opts)
	if res.ClearedCount != 4 {
		t.Errorf("ClearedCount = %d, want 4 (user, two assistants, tool)", res.ClearedCount)
	}
	if got := res.Messages[2].Content.TextValue(); got != prune.AssistantPlaceholder(2, 10, "") {
		t.Errorf("assistant placeholder = %q", got)
	}
	if got := res.Messages[1].Content.TextValue(); got != prune.MessagePlaceholder(message.RoleUser, 1, 3) {
		t.Errorf("user placeholder = %q", got)
	}
}

func TestHardClearOldMessages_DisabledByZeroAge(t *testing.T) {
	t.Parallel()

	history := agedHistory()
	res := prune.HardClearOldMessages(history, prune.HardClearOptions{Now: now})
	if res.ClearedCount != 0 {
		t.Errorf("ClearedCount = %d, want 0", res.ClearedCount)
	}
	for i := range history {
		if !res.Messages[i].Content.Equal(history[i].Content) {
			t.Errorf("message %d changed", i)
		}
	}
}

// ---------------------------------------------------------------------------
// ShouldHardClear / ApplyHardClear
// ---------------------------------------------------------------------------

func TestShouldHardClear(t *testing.T) {
	t.Parallel()

	all := agedHistory()
	opts := prune.HardClearOptions{MaxMessageAge: time.Hour, KeepSystemMessages: true, KeepUserMessages: true, Now: now}

	tests := []struct {
		name    string
		msg     message.PrunableMessage
		expired []string
		want    bool
	}{
		{"expired_id_fresh_message", all[5], []string{"t2"}, true},
		{"old_tool", all[3], nil, true},
		{"fresh_tool", all[5], nil, false},
		{"kept_system", all[0], nil, false},
		{"no_timestamp", all[6], nil, false},
		{"already_cleared", prune.HardClearMessage(all[3], "x"), []string{"t1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := prune.ShouldHardClear(tt.msg, tt.expired, all, opts); got != tt.want {
				t.Errorf("ShouldHardClear() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyHardClear(t *testing.T) {
	t.Parallel()

	opts := prune.HardClearOptions{MaxMessageAge: time.Hour, KeepSystemMessages: true, KeepUserMessages: true, KeepLastNAssistant: 2, Now: now}
	expired := []prune.ExpiredCall{{ToolCallID: "t2", ToolName: "bash"}, {ToolCallID: "t1", ToolName: "bash"}}

	res := prune.ApplyHardClear(agedHistory(), expired, opts)
	if res.ClearedCount != 3 {
		t.Errorf("ClearedCount = %d, want 3", res.ClearedCount)
	}
	if !slices.Equal(res.ClearedToolCallIDs, []string{"t1", "t2"}) {
		t.Errorf("ClearedToolCallIDs = %v", res.ClearedToolCallIDs)
	}

	again := prune.ApplyHardClear(res.Messages, expired, opts)
	if again.ClearedCount != 0 {
		t.Errorf("reapplying cleared %d more", again.ClearedCount)
	}
	for i := range res.Messages {
		if !again.Messages[i].Content.Equal(res.Messages[i].Content) {
			t.Errorf("message %d changed on reapply", i)
		}
	}
}
