// Package reporter renders a fixed event vocabulary with
// context-header tracking so interleaved agent output stays readable,
// using the charmbracelet styling stack for color/width handling.
package reporter

// Reporter is the fixed event vocabulary the scheduler and agent step
// emit to. Every method is safe to call from multiple goroutines.
type Reporter interface {
	WorkflowStarted(workflowID string)
	StateStarted(agentID, state string, attempt int)
	ProgressMessage(agentID, state, message string)
	ToolInvocation(agentID, state, tool, summary string)
	ToolError(agentID, state, tool string, err error)
	StateCompleted(agentID, state string, cost float64)
	Transition(agentID, state, kind, target string)
	AgentTerminated(agentID, result string)
	AgentPaused(agentID, reason string)
	WorkflowPaused(reason string)
	WorkflowCompleted(workflowID string)
	ScriptStarted(agentID, state, path string)
	ScriptCompleted(agentID, state string, exitCode int)
	Error(agentID, state string, err error)
	ScopeChanged(path string)
}
