package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/scheduler"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/workflow"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	var (
		entry        string
		model        string
		budgetUSD    float64
		budgetWall   time.Duration
		maxParallel  int
		quiet        bool
		width        int
	)

	cmd := &cobra.Command{
		Use:   "run <scope>",
		Short: "start a new workflow over a directory or zip scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scopePath := args[0]

			d, cleanup, err := buildDeps(flags, quiet, width)
			if err != nil {
				return err
			}
			defer cleanup()

			src, scopeRef, err := openScope(scopePath)
			if err != nil {
				return err
			}
			d.executor.Scope = src

			if model != "" {
				d.executor.Model = model
			}
			if maxParallel > 0 {
				d.cfgSched.MaxParallel = maxParallel
			}
			if budgetUSD > 0 {
				d.cfgSched.Budget.MaxCost = budgetUSD
			}
			if budgetWall > 0 {
				d.cfgSched.Budget.MaxDuration = budgetWall
			}

			entryState := entry
			if entryState == "" {
				entryState = d.cfg.DefaultEntry
			}
			d.executor.RetryLimit = d.cfg.RetryLimit

			w := workflow.New(newWorkflowID(scopePath), scopeRef, entryState, time.Now())

			ctx, cancel := signalContext()
			defer cancel()

			stopWatcher := startScopeWatcher(ctx, scopeRef, w, d.rep, d.log)
			defer stopWatcher()

			sched := scheduler.New(d.executor, d.store, d.rep, d.log, d.cfgSched)
			code := runToExit(ctx, sched, w)
			fmt.Fprintf(cmd.OutOrStdout(), "workflow id: %s\n", w.WorkflowID)
			os.Exit(code)
			return nil
		},
	}

	cmd.Flags().StringVar(&entry, "entry", "", "entry state file (default from config)")
	cmd.Flags().StringVar(&model, "model", "", "override the configured Claude model")
	cmd.Flags().Float64Var(&budgetUSD, "budget-usd", 0, "maximum total cost before pausing")
	cmd.Flags().DurationVar(&budgetWall, "budget-wall", 0, "maximum wall-clock duration before pausing")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "bounded concurrent agent steps per tick")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress progress and tool-invocation lines")
	cmd.Flags().IntVar(&width, "width", 0, "fix the console reporter's line width")

	return cmd
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so the
// scheduler finishes in-flight steps and pauses the rest.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
