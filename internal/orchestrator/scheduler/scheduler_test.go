package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/agentstep"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/workflow"
	orcherrors "github.com/ngoclaw/ngoclaw/orchestrator/pkg/errors"
)

type fakeStore struct {
	mu    sync.Mutex
	saves int
}

func (s *fakeStore) Save(context.Context, *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return nil
}

type nullReporter struct{}

func (nullReporter) WorkflowStarted(string)                        {}
func (nullReporter) StateStarted(string, string, int)               {}
func (nullReporter) ProgressMessage(string, string, string)         {}
func (nullReporter) ToolInvocation(string, string, string, string)  {}
func (nullReporter) ToolError(string, string, string, error)        {}
func (nullReporter) StateCompleted(string, string, float64)         {}
func (nullReporter) Transition(string, string, string, string)      {}
func (nullReporter) AgentTerminated(string, string)                 {}
func (nullReporter) AgentPaused(string, string)                     {}
func (nullReporter) WorkflowPaused(string)                          {}
func (nullReporter) WorkflowCompleted(string)                       {}
func (nullReporter) ScriptStarted(string, string, string)           {}
func (nullReporter) ScriptCompleted(string, string, int)            {}
func (nullReporter) Error(string, string, error)                    {}
func (nullReporter) ScopeChanged(string)                            {}

// scriptedStep drives each agent through a fixed sequence of states
// until it reaches "END.md", where it terminates with a result.
type scriptedStep struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newScriptedStep() *scriptedStep {
	return &scriptedStep{calls: map[string]int{}, fail: map[string]bool{}}
}

func (s *scriptedStep) Step(_ context.Context, agent *workflow.Agent) (*agentstep.Outcome, error) {
	s.mu.Lock()
	s.calls[agent.ID]++
	shouldFail := s.fail[agent.ID]
	s.mu.Unlock()

	if shouldFail {
		return nil, orcherrors.NewPromptFileError(agent.CurrentState, nil)
	}

	switch agent.CurrentState {
	case "START.md":
		agent.CurrentState = "END.md"
		return &agentstep.Outcome{CostDelta: 0.1}, nil
	case "END.md":
		result := "done"
		agent.Status = workflow.StatusTerminated
		agent.Result = &result
		return &agentstep.Outcome{CostDelta: 0.1}, nil
	default:
		result := "done"
		agent.Status = workflow.StatusTerminated
		agent.Result = &result
		return &agentstep.Outcome{CostDelta: 0.1}, nil
	}
}

func TestSchedulerRunsToCompletion(t *testing.T) {
	w := workflow.New("wf-1", workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: "/scope"}, "START.md", time.Now())
	step := newScriptedStep()
	store := &fakeStore{}

	sched := New(step, store, nullReporter{}, zap.NewNop(), Config{})
	if err := sched.Run(context.Background(), w); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !w.Complete() {
		t.Errorf("workflow = %+v, want complete", w)
	}
	if store.saves == 0 {
		t.Errorf("saves = %d, want at least one", store.saves)
	}
}

func TestSchedulerBudgetPausesRunningAgents(t *testing.T) {
	w := workflow.New("wf-2", workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: "/scope"}, "START.md", time.Now())
	w.TotalCost = 10 // already over budget before the first tick

	step := newScriptedStep()
	store := &fakeStore{}

	sched := New(step, store, nullReporter{}, zap.NewNop(), Config{Budget: Budget{MaxCost: 1}})
	if err := sched.Run(context.Background(), w); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !w.Paused() {
		t.Errorf("workflow = %+v, want paused", w)
	}
	if w.Agents[0].PausedReason != "budget" {
		t.Errorf("PausedReason = %q, want budget", w.Agents[0].PausedReason)
	}
}

func TestSchedulerCancellationPauses(t *testing.T) {
	w := workflow.New("wf-3", workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: "/scope"}, "START.md", time.Now())
	step := newScriptedStep()
	store := &fakeStore{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched := New(step, store, nullReporter{}, zap.NewNop(), Config{})
	if err := sched.Run(ctx, w); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !w.Paused() {
		t.Errorf("workflow = %+v, want paused after cancellation", w)
	}
}

func TestSchedulerAgentFatalTerminatesOnlyThatAgent(t *testing.T) {
	w := workflow.New("wf-4", workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: "/scope"}, "START.md", time.Now())
	sibling := workflow.NewRootAgent("START.md")
	sibling.ID = "main.sibling"
	w.Append(sibling)

	step := newScriptedStep()
	step.fail["main"] = true
	store := &fakeStore{}

	sched := New(step, store, nullReporter{}, zap.NewNop(), Config{})
	if err := sched.Run(context.Background(), w); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !w.Complete() {
		t.Errorf("workflow = %+v, want complete (both agents terminate)", w)
	}
}

func TestSchedulerConcurrencyCapRespected(t *testing.T) {
	w := workflow.New("wf-5", workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: "/scope"}, "START.md", time.Now())
	for i := 0; i < 9; i++ {
		a := workflow.NewRootAgent("START.md")
		a.ID = "extra-" + string(rune('a'+i))
		w.Append(a)
	}

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	step := &trackingStep{onEnter: func() {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}, onExit: func() {
		mu.Lock()
		inFlight--
		mu.Unlock()
	}}
	store := &fakeStore{}

	sched := New(step, store, nullReporter{}, zap.NewNop(), Config{MaxParallel: 3})
	if err := sched.Run(context.Background(), w); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight > 3 {
		t.Errorf("maxInFlight = %d, want <= 3", maxInFlight)
	}
}

type trackingStep struct {
	onEnter func()
	onExit  func()
}

func (t *trackingStep) Step(_ context.Context, agent *workflow.Agent) (*agentstep.Outcome, error) {
	t.onEnter()
	defer t.onExit()
	result := "done"
	agent.Status = workflow.StatusTerminated
	agent.Result = &result
	return &agentstep.Outcome{}, nil
}
