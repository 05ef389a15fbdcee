// Package workflow holds the persisted data model: Workflow, Agent and
// the return-frame stack that makes call/result subroutine semantics
// possible. Every type here is exported with json tags since this is
// the journal's wire format, not an aggregate hiding fields behind
// accessors.
package workflow

import (
	"encoding/json"
	"strconv"
	"time"
)

// Status is the lifecycle state of one Agent.
type Status string

const (
	StatusRunning    Status = "RUNNING"
	StatusPaused     Status = "PAUSED"
	StatusTerminated Status = "TERMINATED"
)

// ScopeKind distinguishes the two Prompt/Scope Source implementations.
type ScopeKind string

const (
	ScopeDirectory ScopeKind = "directory"
	ScopeZip       ScopeKind = "zip"
)

// ScopeRef identifies the content source backing a Workflow.
type ScopeRef struct {
	Kind ScopeKind `json:"kind"`
	Path string    `json:"path"`
}

// Frame is one return address on an Agent's call stack.
type Frame struct {
	CallerSession string `json:"caller_session"`
	ReturnState   string `json:"return_state"`
}

// Agent is one cursor walking the state graph.
//
// SessionID is nil iff the next step must not pass a resume token.
// PendingResult is the side channel through which a child's <result>
// body is handed to its caller (call/result); agentstep prefixes it to
// the caller's next prompt as "Subroutine result:" and then clears it.
type Agent struct {
	ID            string   `json:"id"`
	CurrentState  string   `json:"current_state"`
	SessionID     *string  `json:"session_id"`
	Stack         []Frame  `json:"stack"`
	Status        Status   `json:"status"`
	PausedReason  string   `json:"paused_reason,omitempty"`
	PendingResult *string  `json:"pending_result,omitempty"`
	Result        *string  `json:"result,omitempty"`
	Error         string   `json:"error,omitempty"`
	forkCounter   int      // next child ordinal for auto-generated fork ids; not persisted
}

// NewRootAgent creates the "main" agent a new Workflow starts with.
func NewRootAgent(entryState string) *Agent {
	return &Agent{
		ID:           "main",
		CurrentState: entryState,
		SessionID:    nil,
		Stack:        []Frame{},
		Status:       StatusRunning,
	}
}

// IsRunning reports whether the agent is eligible for the next tick.
func (a *Agent) IsRunning() bool { return a.Status == StatusRunning }

// NextForkID returns the next auto-generated child id for this parent
// ("<parent>.<k>", k monotonic per parent) and advances the counter.
func (a *Agent) NextForkID() string {
	a.forkCounter++
	return a.ID + "." + strconv.Itoa(a.forkCounter)
}

// Workflow is the top-level record persisted as one JSON journal file
// keyed by workflow id.
type Workflow struct {
	WorkflowID string    `json:"workflow_id"`
	Scope      ScopeRef  `json:"scope"`
	Agents     []*Agent  `json:"agents"`
	TotalCost  float64   `json:"total_cost"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Extra preserves unknown top-level keys across load/save round
	// trips: the schema is forward-extensible, so unknown keys are
	// kept but otherwise ignored.
	Extra map[string]json.RawMessage `json:"-"`
}

// New creates a fresh Workflow with one "main" agent at entryState.
func New(workflowID string, scope ScopeRef, entryState string, now time.Time) *Workflow {
	return &Workflow{
		WorkflowID: workflowID,
		Scope:      scope,
		Agents:     []*Agent{NewRootAgent(entryState)},
		TotalCost:  0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Find returns the agent with the given id, or nil.
func (w *Workflow) Find(agentID string) *Agent {
	for _, a := range w.Agents {
		if a.ID == agentID {
			return a
		}
	}
	return nil
}

// RunningAgents returns every agent currently eligible to be stepped.
func (w *Workflow) RunningAgents() []*Agent {
	running := make([]*Agent, 0, len(w.Agents))
	for _, a := range w.Agents {
		if a.IsRunning() {
			running = append(running, a)
		}
	}
	return running
}

// Complete reports whether the workflow has no agents left at all.
func (w *Workflow) Complete() bool {
	return len(w.Agents) == 0
}

// Paused reports whether the workflow is non-empty but has no RUNNING agent.
func (w *Workflow) Paused() bool {
	if len(w.Agents) == 0 {
		return false
	}
	for _, a := range w.Agents {
		if a.Status == StatusRunning {
			return false
		}
	}
	return true
}

// AddCost adds a non-negative delta to the running total, which only
// ever grows.
func (w *Workflow) AddCost(delta float64) {
	if delta <= 0 {
		return
	}
	w.TotalCost += delta
}

// PauseAll transitions every RUNNING agent to PAUSED with the given reason.
func (w *Workflow) PauseAll(reason string) {
	for _, a := range w.Agents {
		if a.Status == StatusRunning {
			a.Status = StatusPaused
			a.PausedReason = reason
		}
	}
}

// RemoveTerminated drops every TERMINATED agent from the roster,
// together with any call stack it still holds, keeping the survivors
// in order.
func (w *Workflow) RemoveTerminated() {
	kept := w.Agents[:0]
	for _, a := range w.Agents {
		if a.Status != StatusTerminated {
			kept = append(kept, a)
		}
	}
	w.Agents = kept
}

// Append adds a newly forked child to the roster.
func (w *Workflow) Append(child *Agent) {
	w.Agents = append(w.Agents, child)
}
