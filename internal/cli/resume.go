package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/scheduler"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/scope"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/workflow"
)

func newResumeCommand(flags *globalFlags) *cobra.Command {
	var (
		quiet bool
		width int
	)

	cmd := &cobra.Command{
		Use:   "resume <workflow-id>",
		Short: "resume a paused workflow from its journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID := args[0]

			d, cleanup, err := buildDeps(flags, quiet, width)
			if err != nil {
				return err
			}
			defer cleanup()

			w, err := d.store.Load(cmd.Context(), workflowID)
			if err != nil {
				return err
			}

			var src scope.Source
			switch w.Scope.Kind {
			case workflow.ScopeZip:
				src = scope.NewZip(w.Scope.Path)
			default:
				src = scope.NewDirectory(w.Scope.Path)
			}
			d.executor.Scope = src
			d.executor.RetryLimit = d.cfg.RetryLimit

			ctx, cancel := signalContext()
			defer cancel()

			stopWatcher := startScopeWatcher(ctx, w.Scope, w, d.rep, d.log)
			defer stopWatcher()

			// A previously PAUSED agent is eligible for the next tick once
			// resumed; clear its reason and flip it back to RUNNING.
			for _, a := range w.Agents {
				if a.Status == workflow.StatusPaused {
					a.Status = workflow.StatusRunning
					a.PausedReason = ""
				}
			}

			sched := scheduler.New(d.executor, d.store, d.rep, d.log, d.cfgSched)
			code := runToExit(ctx, sched, w)
			fmt.Fprintf(cmd.OutOrStdout(), "workflow id: %s\n", w.WorkflowID)
			os.Exit(code)
			return nil
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress progress and tool-invocation lines")
	cmd.Flags().IntVar(&width, "width", 0, "fix the console reporter's line width")

	return cmd
}
