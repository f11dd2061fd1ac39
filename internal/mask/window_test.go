package mask_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/ctxprune/internal/mask"
)

func TestApplySlidingWindowMask(t *testing.T) {
	t.Parallel()

	at := func(minutesAgo int) time.Time { return testNow.Add(-time.Duration(minutesAgo) * time.Minute) }

	batch := []mask.Observation{
		{ID: "err", ToolName: "bash", Output: "panic: nil map", Type: mask.OutputError, Timestamp: at(7)},
		{ID: "r1", ToolName: "read", Output: "x", Type: mask.OutputCode, Timestamp: at(3)},
		{ID: "r2", ToolName: "read", Output: "x", Type: mask.OutputCode, Timestamp: at(1)},
		{ID: "old", ToolName: "bash", Output: "go build ./...\nok", Type: mask.OutputCommandOutput, Timestamp: at(6)},
		{ID: "r3", ToolName: "read", Output: "x", Type: mask.OutputCode, Timestamp: at(2)},
		{ID: "r4", ToolName: "read", Output: "x", Type: mask.OutputCode, Timestamp: at(4)},
		{ID: "r5", ToolName: "read", Output: "x", Type: mask.OutputCode, Timestamp: at(5)},
	}

	m := newTestMasker(mask.DefaultConfig())
	got, stats := m.ApplySlidingWindowMask(batch, 5)

	for i := range batch {
		if got[i].ID != batch[i].ID {
			t.Fatalf("result[%d].ID = %q, want input order %q", i, got[i].ID, batch[i].ID)
		}
	}

	if !got[0].WasRetained || got[0].MaskReason != mask.ReasonRetainedOutsideWindow {
		t.Errorf("error outside window: retained=%v reason=%q", got[0].WasRetained, got[0].MaskReason)
	}
	if got[3].WasRetained {
		t.Fatal("old command output should be replaced")
	}
	if want := "[bash: go build ./... | 2 lines, ~5 tokens]"; got[3].Output != want {
		t.Errorf("placeholder = %q, want %q", got[3].Output, want)
	}
	for _, i := range []int{1, 2, 4, 5, 6} {
		if !got[i].WasRetained || got[i].Output != "x" {
			t.Errorf("in-window result[%d] = %+v, want retained", i, got[i])
		}
	}
	if stats.Retained != 6 || stats.Masked != 1 {
		t.Errorf("stats = %+v, want 6 retained / 1 masked", stats)
	}
}

func TestApplySlidingWindowMask_HalfCapOutsideWindow(t *testing.T) {
	t.Parallel()

	cfg := mask.DefaultConfig()
	cfg.MaxTokensPerObservation = 400
	m := newTestMasker(cfg)

	var lines []string
	for i := range 300 {
		lines = append(lines, fmt.Sprintf("goroutine %d [running]", i))
	}
	batch := []mask.Observation{
		{ID: "e", ToolName: "bash", Output: strings.Join(lines, "\n"), Type: mask.OutputError, Timestamp: testNow.Add(-time.Hour)},
		{ID: "n", ToolName: "bash", Output: "ok", Type: mask.OutputCommandOutput, Timestamp: testNow},
	}
	got, _ := m.ApplySlidingWindowMask(batch, 1)
	if tokens := mask.EstimateTokens(got[0].Output); tokens > 200 {
		t.Errorf("outside-window error kept %d tokens, want <= 200", tokens)
	}
}

func TestApplySlidingWindowMask_PlaceholderSummaries(t *testing.T) {
	t.Parallel()

	old := testNow.Add(-time.Hour)
	batch := []mask.Observation{
		{ID: "f", ToolName: "read_file", Input: `{"path": "internal/mask/window.go"}`, Output: "a\nb", Type: mask.OutputFileContent, Timestamp: old},
		{ID: "s", ToolName: "grep", Output: "a.go:1\n\nb.go:2\nc.go:3", Type: mask.OutputSearchResult, Timestamp: old},
		{ID: "b", ToolName: "read_file", Input: "cat docs/README.md", Output: "z", Type: mask.OutputFileContent, Timestamp: old},
		{ID: "new", ToolName: "bash", Output: "ok", Type: mask.OutputCommandOutput, Timestamp: testNow},
	}

	got, _ := newTestMasker(mask.DefaultConfig()).ApplySlidingWindowMask(batch, 1)

	wants := map[int]string{
		0: "read internal/mask/window.go",
		1: "3 matches",
		2: "read docs/README.md",
	}
	for i, want := range wants {
		if !strings.Contains(got[i].Output, want) {
			t.Errorf("result[%d] = %q, want it to contain %q", i, got[i].Output, want)
		}
	}
}

func TestApplySlidingWindowMask_Empty(t *testing.T) {
	t.Parallel()

	got, stats := newTestMasker(mask.DefaultConfig()).ApplySlidingWindowMask(nil, 0)
	if len(got) != 0 || stats.TotalObservations != 0 {
		t.Errorf("got %v %+v, want empty", got, stats)
	}
}
