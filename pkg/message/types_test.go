package message

import (
	"testing"
	"time"
)

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleSystem, true},
		{RoleUser, true},
		{RoleAssistant, true},
		{RoleTool, true},
		{Role("function"), false},
		{Role(""), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.want {
				t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestPrunableMessage_Length(t *testing.T) {
	m := PrunableMessage{Content: Text("héllo")}
	if got := m.Length(); got != 5 {
		t.Errorf("Length() = %d, want 5 (rune count)", got)
	}
	m.OriginalLength = 42
	if got := m.Length(); got != 42 {
		t.Errorf("Length() = %d, want recorded 42", got)
	}
}

func TestPrunableMessage_HasToolCall(t *testing.T) {
	m := PrunableMessage{ToolCallIDs: []string{"tc-1", "tc-2"}}
	if !m.HasToolCall("tc-2") {
		t.Error("HasToolCall(tc-2) = false, want true")
	}
	if m.HasToolCall("tc-3") {
		t.Error("HasToolCall(tc-3) = true, want false")
	}
}

func TestPrunableMessage_CloneIsDeep(t *testing.T) {
	orig := PrunableMessage{
		Index:       3,
		Role:        RoleTool,
		Content:     Blocks(NewTextBlock("a"), NewRawBlock([]byte(`{"k":1}`))),
		Timestamp:   time.Unix(100, 0),
		ToolCallIDs: []string{"tc-1"},
	}
	cp := orig.Clone()
	cp.ToolCallIDs[0] = "changed"
	blocks := cp.Content.BlockList()
	blocks[0].Text = "changed"

	if orig.ToolCallIDs[0] != "tc-1" {
		t.Errorf("ToolCallIDs aliased: %v", orig.ToolCallIDs)
	}
	if orig.Content.BlockList()[0].Text != "a" {
		t.Error("content blocks aliased")
	}
	if !orig.Content.Equal(cp.Content) {
		t.Error("clone content should equal original")
	}
}

func TestCloneAll_Nil(t *testing.T) {
	if got := CloneAll(nil); got != nil {
		t.Errorf("CloneAll(nil) = %v, want nil", got)
	}
}
