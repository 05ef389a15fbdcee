// Package llmadapter spawns the "claude" child process in headless
// stream-json mode and extracts the session id and per-turn cost from
// its output: a child process over stdio pipes, drained by a
// background goroutine, matching cc_wrap.py's flag set.
package llmadapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	orcherrors "github.com/ngoclaw/ngoclaw/orchestrator/pkg/errors"
)

// disallowedTools are interactive/dangerous built-in tools this
// orchestrator never lets a headless child invoke.
var disallowedTools = []string{"EnterPlanMode", "ExitPlanMode", "AskUserQuestion", "NotebookEdit"}

// Options configures one invocation.
type Options struct {
	Model           string
	SessionID       *string
	ForkSession     bool
	SkipPermissions bool
}

// Event is one parsed line of the child's stream-json output. Structure
// is intentionally loose — the orchestrator only cares about a handful
// of well-known keys and otherwise passes events through untouched for
// the Console Reporter to render.
type Event map[string]any

// Result is the outcome of a completed invocation.
type Result struct {
	Events    []Event
	SessionID *string
	Cost      float64
}

// Adapter drives the claude binary.
type Adapter struct {
	binary string
	logger *zap.Logger
}

// New creates an Adapter. binary defaults to "claude" when empty.
func New(binary string, logger *zap.Logger) *Adapter {
	if binary == "" {
		binary = "claude"
	}
	return &Adapter{binary: binary, logger: logger.With(zap.String("component", "llm-adapter"))}
}

// Invoke runs the child synchronously to completion and returns every
// accumulated event plus the last-observed session id and summed cost.
func (a *Adapter) Invoke(ctx context.Context, prompt string, opts Options) (*Result, error) {
	result := &Result{}

	err := a.stream(ctx, prompt, opts, func(evt Event) {
		result.Events = append(result.Events, evt)
		if sid, ok := extractSessionID(evt); ok {
			result.SessionID = &sid
		}
		result.Cost += extractCost(evt)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// InvokeStream runs the child and calls onEvent for each parsed event
// as it arrives, for callers that want to render output live rather
// than wait for completion.
func (a *Adapter) InvokeStream(ctx context.Context, prompt string, opts Options, onEvent func(Event)) error {
	return a.stream(ctx, prompt, opts, onEvent)
}

func (a *Adapter) stream(ctx context.Context, prompt string, opts Options, onEvent func(Event)) error {
	args := a.buildArgs(prompt, opts)

	cmd := exec.CommandContext(ctx, a.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return orcherrors.NewInternalErrorWithCause("open claude stdout", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return orcherrors.NewInternalErrorWithCause("start claude", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			a.logger.Warn("Failed to parse claude output line", zap.Error(err), zap.ByteString("line", line))
			continue
		}
		onEvent(evt)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		a.logger.Warn("Error reading claude stdout", zap.Error(err))
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		exitCode := -1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return orcherrors.NewClaudeCodeError(exitCode, stderr.String())
	}

	return nil
}

func (a *Adapter) buildArgs(prompt string, opts Options) []string {
	args := []string{
		"-p",
		"--output-format", "stream-json",
		"--verbose",
		"--disallowed-tools", strings.Join(disallowedTools, ","),
	}

	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}

	if opts.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	} else {
		args = append(args, "--permission-mode", "acceptEdits")
	}

	if opts.SessionID != nil {
		args = append(args, "--resume", *opts.SessionID)
		if opts.ForkSession {
			args = append(args, "--fork-session")
		}
	}

	args = append(args, "--", prompt)
	return args
}

// extractSessionID opportunistically pulls a session id from either the
// top level or metadata.session_id of one event.
func extractSessionID(evt Event) (string, bool) {
	if v, ok := evt["session_id"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	if meta, ok := evt["metadata"].(map[string]any); ok {
		if v, ok := meta["session_id"]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// extractCost pulls total_cost_usd (or the equivalent nested form) from
// one event, returning 0 when absent.
func extractCost(evt Event) float64 {
	if v, ok := evt["total_cost_usd"]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	if usage, ok := evt["usage"].(map[string]any); ok {
		if v, ok := usage["total_cost_usd"]; ok {
			if f, ok := toFloat(v); ok {
				return f
			}
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ResponseText concatenates every assistant text chunk across events,
// for the Agent Step to feed into the Transition Parser.
func ResponseText(events []Event) string {
	var buf bytes.Buffer
	for _, evt := range events {
		typ, _ := evt["type"].(string)
		if typ != "assistant" {
			continue
		}
		message, ok := evt["message"].(map[string]any)
		if !ok {
			continue
		}
		content, ok := message["content"].([]any)
		if !ok {
			continue
		}
		for _, blockAny := range content {
			block, ok := blockAny.(map[string]any)
			if !ok {
				continue
			}
			if blockType, _ := block["type"].(string); blockType != "text" {
				continue
			}
			if text, ok := block["text"].(string); ok {
				buf.WriteString(text)
			}
		}
	}
	return buf.String()
}

// ErrorContext wraps a claude failure with a state name for callers
// that want the familiar fmt.Errorf %w chain instead of the bare
// AppError.
func ErrorContext(state string, err error) error {
	return fmt.Errorf("state %s: %w", state, err)
}
