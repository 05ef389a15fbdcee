package llmadapter

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestBuildArgs(t *testing.T) {
	a := New("claude", zap.NewNop())

	t.Run("default permission mode and no resume", func(t *testing.T) {
		args := a.buildArgs("hello", Options{})
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "--permission-mode acceptEdits") {
			t.Errorf("args = %q, want acceptEdits", joined)
		}
		if strings.Contains(joined, "--resume") {
			t.Errorf("args = %q, want no --resume", joined)
		}
		if !strings.HasSuffix(joined, "-- hello") {
			t.Errorf("args = %q, want prompt as final positional after --", joined)
		}
	})

	t.Run("skip permissions", func(t *testing.T) {
		args := a.buildArgs("hello", Options{SkipPermissions: true})
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "--dangerously-skip-permissions") {
			t.Errorf("args = %q, want skip-permissions flag", joined)
		}
		if strings.Contains(joined, "acceptEdits") {
			t.Errorf("args = %q, want no acceptEdits when skipping", joined)
		}
	})

	t.Run("resume with fork session", func(t *testing.T) {
		sid := "sess-123"
		args := a.buildArgs("hello", Options{SessionID: &sid, ForkSession: true})
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "--resume sess-123") || !strings.Contains(joined, "--fork-session") {
			t.Errorf("args = %q, want resume+fork-session", joined)
		}
	})

	t.Run("resume without fork session omits the flag", func(t *testing.T) {
		sid := "sess-123"
		args := a.buildArgs("hello", Options{SessionID: &sid})
		joined := strings.Join(args, " ")
		if strings.Contains(joined, "--fork-session") {
			t.Errorf("args = %q, want no --fork-session", joined)
		}
	})

	t.Run("disallowed tools always present", func(t *testing.T) {
		args := a.buildArgs("hello", Options{})
		joined := strings.Join(args, " ")
		for _, tool := range disallowedTools {
			if !strings.Contains(joined, tool) {
				t.Errorf("args = %q, want %s in disallowed tools", joined, tool)
			}
		}
	})
}

func TestExtractSessionID(t *testing.T) {
	t.Run("top level", func(t *testing.T) {
		sid, ok := extractSessionID(Event{"session_id": "abc"})
		if !ok || sid != "abc" {
			t.Errorf("extractSessionID() = %q, %v", sid, ok)
		}
	})

	t.Run("nested under metadata", func(t *testing.T) {
		sid, ok := extractSessionID(Event{"metadata": map[string]any{"session_id": "xyz"}})
		if !ok || sid != "xyz" {
			t.Errorf("extractSessionID() = %q, %v", sid, ok)
		}
	})

	t.Run("absent", func(t *testing.T) {
		_, ok := extractSessionID(Event{"type": "system"})
		if ok {
			t.Errorf("extractSessionID() found one, want none")
		}
	})
}

func TestExtractCost(t *testing.T) {
	t.Run("top level", func(t *testing.T) {
		if got := extractCost(Event{"total_cost_usd": 0.42}); got != 0.42 {
			t.Errorf("extractCost() = %v, want 0.42", got)
		}
	})

	t.Run("absent defaults to zero", func(t *testing.T) {
		if got := extractCost(Event{}); got != 0 {
			t.Errorf("extractCost() = %v, want 0", got)
		}
	})
}

func TestResponseText(t *testing.T) {
	events := []Event{
		{"type": "system"},
		{
			"type": "assistant",
			"message": map[string]any{
				"content": []any{
					map[string]any{"type": "text", "text": "Looks good. "},
					map[string]any{"type": "tool_use", "text": "ignored"},
				},
			},
		},
		{
			"type": "assistant",
			"message": map[string]any{
				"content": []any{
					map[string]any{"type": "text", "text": "<goto>NEXT.md</goto>"},
				},
			},
		},
	}

	got := ResponseText(events)
	want := "Looks good. <goto>NEXT.md</goto>"
	if got != want {
		t.Errorf("ResponseText() = %q, want %q", got, want)
	}
}

// TestInvokeAgainstFakeBinary exercises the full subprocess path against
// a throwaway shell script standing in for the claude binary.
func TestInvokeAgainstFakeBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake binary is a shell script")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "claude")
	script := "#!/bin/sh\n" +
		`echo '{"type":"system"}'` + "\n" +
		`echo '{"type":"assistant","session_id":"sess-1","total_cost_usd":0.05,"message":{"content":[{"type":"text","text":"<goto>NEXT.md</goto>"}]}}'` + "\n"
	if err := os.WriteFile(fake, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}

	a := New(fake, zap.NewNop())
	result, err := a.Invoke(context.Background(), "do the thing", Options{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result.SessionID == nil || *result.SessionID != "sess-1" {
		t.Errorf("SessionID = %v, want sess-1", result.SessionID)
	}
	if result.Cost != 0.05 {
		t.Errorf("Cost = %v, want 0.05", result.Cost)
	}
	if got := ResponseText(result.Events); got != "<goto>NEXT.md</goto>" {
		t.Errorf("ResponseText() = %q", got)
	}
}

func TestInvokeNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake binary is a shell script")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "claude")
	script := "#!/bin/sh\necho 'boom' >&2\nexit 3\n"
	if err := os.WriteFile(fake, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}

	a := New(fake, zap.NewNop())
	_, err := a.Invoke(context.Background(), "do the thing", Options{})
	if err == nil {
		t.Fatal("Invoke() error = nil, want ClaudeCodeError")
	}
}
