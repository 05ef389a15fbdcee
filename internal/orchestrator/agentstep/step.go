// Package agentstep executes one state for one agent and applies the
// transition it yields, matching the goto/reset/call/result field
// mutations exercised by test_goto_result_handlers.py and
// test_reset_handler.py.
package agentstep

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/llmadapter"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/reporter"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/scope"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/scriptrunner"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/transition"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/workflow"
	orcherrors "github.com/ngoclaw/ngoclaw/orchestrator/pkg/errors"
)

// scriptExtensions are the file extensions dispatched to the Script
// Runner; every other extension is treated as a prompt.
var scriptExtensions = map[string]bool{".sh": true, ".bat": true}

// Outcome is what one Step call produced for its agent.
type Outcome struct {
	Children  []*workflow.Agent
	CostDelta float64
}

// llmInvoker is the subset of *llmadapter.Adapter Agent Step needs;
// narrowed to an interface so tests can substitute a fake instead of
// spawning a real claude process.
type llmInvoker interface {
	Invoke(ctx context.Context, prompt string, opts llmadapter.Options) (*llmadapter.Result, error)
}

// scriptExecutor is the subset of *scriptrunner.Runner Agent Step needs.
type scriptExecutor interface {
	Run(ctx context.Context, scriptPath string, timeout time.Duration, env map[string]string) (*scriptrunner.Result, error)
}

// Executor runs Agent Step against a fixed scope, LLM adapter, and
// script runner. One Executor is shared by every concurrent step in a
// tick; it holds no per-agent state of its own.
type Executor struct {
	Scope         scope.Source
	LLM           llmInvoker
	Scripts       scriptExecutor
	Reporter      reporter.Reporter
	Logger        *zap.Logger
	RetryLimit    int           // default 3
	ScriptTimeout time.Duration // 0 means unbounded
	Model         string
	SkipPerms     bool
}

// Step executes agent's current state to completion (including its
// own internal retry loop on NoTransition) and mutates agent in place.
// It never touches the workflow's agent slice directly — forked
// children are returned for the scheduler's reconciliation phase to
// append, which happens after mutation and removal, under a single
// mutator.
func (e *Executor) Step(ctx context.Context, agent *workflow.Agent) (*Outcome, error) {
	limit := e.RetryLimit
	if limit <= 0 {
		limit = 3
	}

	for attempt := 1; attempt <= limit; attempt++ {
		e.Reporter.StateStarted(agent.ID, agent.CurrentState, attempt)

		responseText, cost, err := e.runState(ctx, agent)
		if err != nil {
			e.Reporter.Error(agent.ID, agent.CurrentState, err)
			return nil, err
		}

		t := transition.Parse(responseText)
		if t == transition.NoTransition {
			if attempt < limit {
				continue
			}
			err := orcherrors.NewNoTransitionError(agent.CurrentState, attempt)
			e.Reporter.Error(agent.ID, agent.CurrentState, err)
			return nil, err
		}

		forks := transition.ParseForks(responseText)
		children := e.applyForks(agent, forks)
		e.applyTransition(agent, t)
		e.Reporter.StateCompleted(agent.ID, agent.CurrentState, cost)

		return &Outcome{Children: children, CostDelta: cost}, nil
	}

	// Unreachable: the loop above always returns by its final iteration.
	return nil, orcherrors.NewNoTransitionError(agent.CurrentState, limit)
}

// runState dispatches on current_state's extension and returns the raw
// text to feed the Transition Parser, plus the step's incremental cost.
func (e *Executor) runState(ctx context.Context, agent *workflow.Agent) (string, float64, error) {
	state := agent.CurrentState
	ext := strings.ToLower(filepath.Ext(state))

	if scriptExtensions[ext] {
		return e.runScript(ctx, agent)
	}
	return e.runPrompt(ctx, agent)
}

func (e *Executor) runPrompt(ctx context.Context, agent *workflow.Agent) (string, float64, error) {
	exists, err := e.Scope.Exists(ctx, agent.CurrentState)
	if err != nil {
		return "", 0, err
	}
	if !exists {
		return "", 0, orcherrors.NewPromptFileError(agent.CurrentState, nil)
	}

	body, err := e.Scope.Read(ctx, agent.CurrentState)
	if err != nil {
		return "", 0, err
	}

	if agent.PendingResult != nil {
		body = "Subroutine result:\n" + *agent.PendingResult + "\n\n" + body
		agent.PendingResult = nil
	}

	result, err := e.LLM.Invoke(ctx, body, llmadapter.Options{
		Model:           e.Model,
		SessionID:       agent.SessionID,
		SkipPermissions: e.SkipPerms,
	})
	if err != nil {
		return "", 0, err
	}

	if result.SessionID != nil {
		agent.SessionID = result.SessionID
	}

	return llmadapter.ResponseText(result.Events), result.Cost, nil
}

func (e *Executor) runScript(ctx context.Context, agent *workflow.Agent) (string, float64, error) {
	path, err := e.Scope.Materialize(ctx, agent.CurrentState)
	if err != nil {
		return "", 0, err
	}

	e.Reporter.ScriptStarted(agent.ID, agent.CurrentState, path)
	result, err := e.Scripts.Run(ctx, path, e.ScriptTimeout, nil)
	if err != nil {
		return "", 0, err
	}
	e.Reporter.ScriptCompleted(agent.ID, agent.CurrentState, result.ExitCode)

	return result.Stdout, 0, nil
}

// applyTransition mutates agent per the transition it produced. The
// caller has already separated out fork directives; t is never Kind
// == fork (Parse never returns that).
func (e *Executor) applyTransition(agent *workflow.Agent, t transition.Transition) {
	switch t.Kind {
	case transition.KindGoto:
		agent.CurrentState = t.File
		e.Reporter.Transition(agent.ID, agent.CurrentState, "goto", t.File)

	case transition.KindReset:
		if len(agent.Stack) > 0 {
			e.Logger.Warn("Abandoning subroutine on reset",
				zap.String("agent_id", agent.ID),
				zap.Int("frames", len(agent.Stack)),
			)
		}
		agent.CurrentState = t.File
		agent.SessionID = nil
		agent.Stack = nil
		e.Reporter.Transition(agent.ID, agent.CurrentState, "reset", t.File)

	case transition.KindCall:
		agent.Stack = append(agent.Stack, workflow.Frame{
			CallerSession: derefOr(agent.SessionID, ""),
			ReturnState:   agent.CurrentState,
		})
		agent.CurrentState = t.File
		agent.SessionID = nil
		e.Reporter.Transition(agent.ID, agent.CurrentState, "call", t.File)

	case transition.KindResult:
		if len(agent.Stack) == 0 {
			body := t.Body
			agent.Status = workflow.StatusTerminated
			agent.Result = &body
			e.Reporter.AgentTerminated(agent.ID, body)
			return
		}
		frame := agent.Stack[len(agent.Stack)-1]
		agent.Stack = agent.Stack[:len(agent.Stack)-1]
		body := t.Body
		agent.PendingResult = &body
		agent.CurrentState = frame.ReturnState
		if frame.CallerSession == "" {
			agent.SessionID = nil
		} else {
			sid := frame.CallerSession
			agent.SessionID = &sid
		}
		e.Reporter.Transition(agent.ID, agent.CurrentState, "result", frame.ReturnState)
	}
}

// applyForks instantiates one child Agent per discovered fork
// directive. Forks are only materialized from an attempt whose
// response also produced a real transition for the parent — see
// DESIGN.md for why a fork-only (NoTransition) attempt never spawns
// children of its own.
func (e *Executor) applyForks(agent *workflow.Agent, forks []transition.Fork) []*workflow.Agent {
	children := make([]*workflow.Agent, 0, len(forks))
	for _, f := range forks {
		id := f.ID
		if id == "" {
			id = agent.NextForkID()
		} else {
			id = agent.ID + "." + id
		}
		child := &workflow.Agent{
			ID:           id,
			CurrentState: f.File,
			SessionID:    nil,
			Stack:        []workflow.Frame{},
			Status:       workflow.StatusRunning,
		}
		children = append(children, child)
		e.Reporter.Transition(agent.ID, agent.CurrentState, "fork", child.ID+"@"+f.File)
	}
	return children
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
