package cli

import "testing"

func TestRootCommandHasExpectedSubcommands(t *testing.T) {
	root := NewRootCommand()
	want := map[string]bool{"run": true, "resume": true, "list": true, "version": true}
	got := map[string]bool{}
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for name := range want {
		if !got[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRunCommandRequiresExactlyOneArg(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"run"})
	if err := root.Execute(); err == nil {
		t.Errorf("Execute() with no scope arg = nil error, want an error")
	}
}

func TestResumeCommandRequiresWorkflowID(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"resume"})
	if err := root.Execute(); err == nil {
		t.Errorf("Execute() with no workflow id = nil error, want an error")
	}
}

func TestNewWorkflowIDIncludesScopeBaseName(t *testing.T) {
	id := newWorkflowID("/tmp/my-scope/")
	if len(id) <= len("my-scope-") {
		t.Fatalf("newWorkflowID() = %q, too short", id)
	}
	if id[:len("my-scope-")] != "my-scope-" {
		t.Errorf("newWorkflowID() = %q, want prefix my-scope-", id)
	}
}
