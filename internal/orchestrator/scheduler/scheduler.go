// Package scheduler drives a Workflow's agents to quiescence, one tick
// at a time: a bounded-semaphore fan-out over the running agents, with
// pkg/safego wrapping each agent's subprocess-backed step in a
// panic-safe goroutine.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/agentstep"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/reporter"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/workflow"
	orcherrors "github.com/ngoclaw/ngoclaw/orchestrator/pkg/errors"
	"github.com/ngoclaw/ngoclaw/orchestrator/pkg/safego"
)

const defaultMaxParallel = 8

// Store is the subset of the State Store the scheduler needs.
type Store interface {
	Save(ctx context.Context, w *workflow.Workflow) error
}

// StepRunner is the subset of *agentstep.Executor the scheduler needs;
// narrowed to an interface so tests can substitute a fake.
type StepRunner interface {
	Step(ctx context.Context, agent *workflow.Agent) (*agentstep.Outcome, error)
}

// Budget caps a workflow's run: either limit, once exceeded, pauses
// every RUNNING agent before the next tick starts.
type Budget struct {
	MaxCost     float64       // 0 means unlimited
	MaxDuration time.Duration // 0 means unlimited
}

// Config configures one Scheduler run.
type Config struct {
	MaxParallel int // default 8, capped to the live RUNNING agent count per tick
	Budget      Budget
}

// Scheduler drives one Workflow via a shared agentstep.Executor until
// it completes, pauses, or is cancelled.
type Scheduler struct {
	executor StepRunner
	store    Store
	reporter reporter.Reporter
	logger   *zap.Logger
	cfg      Config
}

// New creates a Scheduler.
func New(executor StepRunner, store Store, rep reporter.Reporter, logger *zap.Logger, cfg Config) *Scheduler {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	return &Scheduler{
		executor: executor,
		store:    store,
		reporter: rep,
		logger:   logger.With(zap.String("component", "scheduler")),
		cfg:      cfg,
	}
}

// stepResult pairs one in-flight agent with its outcome.
type stepResult struct {
	agent   *workflow.Agent
	outcome *agentstep.Outcome
	err     error
}

// Run drives w to quiescence: complete (agents empty), paused (budget,
// timeout, or external cancellation), or a workflow-fatal error.
func (s *Scheduler) Run(ctx context.Context, w *workflow.Workflow) error {
	s.reporter.WorkflowStarted(w.WorkflowID)
	started := time.Now()

	for {
		if w.Complete() {
			s.reporter.WorkflowCompleted(w.WorkflowID)
			return nil
		}

		if reason, exceeded := s.checkBudget(w, started); exceeded {
			w.PauseAll(reason)
			if err := s.store.Save(ctx, w); err != nil {
				return err
			}
			s.reporter.WorkflowPaused(reason)
			return nil
		}

		select {
		case <-ctx.Done():
			w.PauseAll("cancelled")
			if err := s.store.Save(ctx, w); err != nil {
				return err
			}
			s.reporter.WorkflowPaused("cancelled")
			return nil
		default:
		}

		running := w.RunningAgents()
		if len(running) == 0 {
			s.reporter.WorkflowPaused("no running agents")
			return nil
		}

		results := s.tick(ctx, running)

		if err := s.reconcile(ctx, w, results); err != nil {
			return err
		}

		if err := s.store.Save(ctx, w); err != nil {
			return err
		}
	}
}

// tick runs one agentstep.Step per RUNNING agent, bounded by
// cfg.MaxParallel concurrent in-flight steps.
//
// A step, once launched, always runs to completion: it is handed a
// context with ctx's values but not its cancellation, so a SIGINT that
// cancels ctx between ticks never reaches an in-flight "claude"
// subprocess or script mid-call. Run's between-tick select on
// ctx.Done() is the only place cancellation takes effect.
func (s *Scheduler) tick(ctx context.Context, running []*workflow.Agent) []stepResult {
	stepCtx := context.WithoutCancel(ctx)

	maxParallel := s.cfg.MaxParallel
	if len(running) < maxParallel {
		maxParallel = len(running)
	}
	sem := make(chan struct{}, maxParallel)

	results := make([]stepResult, len(running))
	var wg sync.WaitGroup

	for i, agent := range running {
		wg.Add(1)
		sem <- struct{}{}
		i, agent := i, agent
		// Overwritten when Step returns; left in place if Step panics, so
		// the agent is failed as agent-fatal instead of silently re-run.
		results[i] = stepResult{agent: agent, err: errors.New("agent step panicked: " + agent.ID)}
		safego.Go(s.logger, "agent-step-"+agent.ID, func() {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := s.executor.Step(stepCtx, agent)
			results[i] = stepResult{agent: agent, outcome: outcome, err: err}
		})
	}

	wg.Wait()
	return results
}

// reconcile applies every tick's results under a single mutator, in
// order: (1) mutate in-place agents — already done by Step itself
// since each agent owns its own record — (2) remove TERMINATED,
// (3) append forked children.
func (s *Scheduler) reconcile(_ context.Context, w *workflow.Workflow, results []stepResult) error {
	var children []*workflow.Agent

	for _, r := range results {
		if r.err != nil {
			if orcherrors.AgentFatal(r.err) {
				r.agent.Status = workflow.StatusTerminated
				r.agent.Error = r.err.Error()
				continue
			}
			return r.err
		}
		if r.outcome != nil {
			w.AddCost(r.outcome.CostDelta)
			children = append(children, r.outcome.Children...)
		}
	}

	w.RemoveTerminated()

	for _, child := range children {
		w.Append(child)
	}

	w.UpdatedAt = time.Now()
	return nil
}

// checkBudget reports whether w has exceeded its monetary or
// wall-clock cap, and the pause reason to use if so.
func (s *Scheduler) checkBudget(w *workflow.Workflow, started time.Time) (string, bool) {
	if s.cfg.Budget.MaxCost > 0 && w.TotalCost >= s.cfg.Budget.MaxCost {
		return "budget", true
	}
	if s.cfg.Budget.MaxDuration > 0 && time.Since(started) >= s.cfg.Budget.MaxDuration {
		return "timeout", true
	}
	return "", false
}
