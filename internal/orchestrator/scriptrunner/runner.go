// Package scriptrunner executes .sh/.bat state files and captures their
// stdout/stderr/exit code. It runs scripts as a plain
// exec.CommandContext with a deadline, not a chroot/namespace sandbox —
// process isolation beyond a timeout is explicitly out of scope.
package scriptrunner

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	orcherrors "github.com/ngoclaw/ngoclaw/orchestrator/pkg/errors"
)

// Result is the outcome of one script execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes script state files under a timeout.
type Runner struct {
	logger *zap.Logger
}

// New creates a Runner.
func New(logger *zap.Logger) *Runner {
	return &Runner{logger: logger.With(zap.String("component", "script-runner"))}
}

// Run executes scriptPath, merging env into the orchestrator's own
// environment (caller entries win on key conflict), and enforces
// timeout by killing and reaping the child process.
//
// Dispatch is by extension: .sh requires bash and POSIX, .bat requires
// cmd.exe and Windows. Any other extension is ScriptUnsupported.
func (r *Runner) Run(ctx context.Context, scriptPath string, timeout time.Duration, env map[string]string) (*Result, error) {
	if _, err := os.Stat(scriptPath); err != nil {
		if os.IsNotExist(err) {
			return nil, orcherrors.NewScriptNotFoundError(scriptPath)
		}
		return nil, orcherrors.NewInternalErrorWithCause("stat script", err)
	}

	cmdArgs, err := r.buildCommand(scriptPath)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, cmdArgs[0], cmdArgs[1:]...)
	cmd.Env = r.buildEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Debug("Running script", zap.String("path", scriptPath))
	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Warn("Script timed out", zap.String("path", scriptPath), zap.Duration("timeout", timeout))
		return nil, orcherrors.NewScriptTimeoutError(scriptPath)
	}

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, orcherrors.NewInternalErrorWithCause("run script", runErr)
		}
	}

	r.logger.Debug("Script completed",
		zap.String("path", scriptPath),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", duration),
	)

	return result, nil
}

func (r *Runner) buildCommand(scriptPath string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(scriptPath)) {
	case ".sh":
		if runtime.GOOS == "windows" {
			return nil, orcherrors.NewScriptUnsupportedError(scriptPath)
		}
		return []string{"bash", scriptPath}, nil
	case ".bat":
		if runtime.GOOS != "windows" {
			return nil, orcherrors.NewScriptUnsupportedError(scriptPath)
		}
		return []string{"cmd.exe", "/c", scriptPath}, nil
	default:
		return nil, orcherrors.NewScriptUnsupportedError(scriptPath)
	}
}

// buildEnv merges the orchestrator's own environment with the
// caller-supplied additions; on key conflict, the caller wins.
func (r *Runner) buildEnv(extra map[string]string) []string {
	base := os.Environ()
	if len(extra) == 0 {
		return base
	}

	overridden := make(map[string]bool, len(extra))
	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key := strings.SplitN(kv, "=", 2)[0]
		if v, ok := extra[key]; ok {
			env = append(env, key+"="+v)
			overridden[key] = true
			continue
		}
		env = append(env, kv)
	}
	for k, v := range extra {
		if !overridden[k] {
			env = append(env, k+"="+v)
		}
	}
	return env
}
