package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ngoclaw/ngoclaw/orchestrator/internal/runindex"
)

func newListCommand(flags *globalFlags) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list known workflows from the run index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, cleanup, err := buildDeps(flags, true, 0)
			if err != nil {
				return err
			}
			defer cleanup()

			idx, err := runindex.Open(d.cfg.RunIndex.Type, d.cfg.RunIndex.DSN)
			if err != nil {
				return fmt.Errorf("open run index: %w", err)
			}

			status := runindex.Status(statusFlag)
			switch status {
			case runindex.StatusAny, runindex.StatusRunning, runindex.StatusPaused, runindex.StatusTerminated:
			default:
				return fmt.Errorf("unknown --status %q (want running, paused, or terminated)", statusFlag)
			}

			rows, err := idx.List(cmd.Context(), status)
			if err != nil {
				return fmt.Errorf("list run index: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "no workflows")
				return nil
			}
			for _, r := range rows {
				fmt.Fprintf(out, "%-40s agents=%-3d running=%-3d paused=%-3d cost=$%.4f updated=%s\n",
					r.WorkflowID, r.AgentCount, r.RunningCount, r.PausedCount, r.TotalCost, r.UpdatedAt.Format("2006-01-02T15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "filter by running, paused, or terminated")
	return cmd
}
