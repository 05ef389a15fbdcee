// Package cli wires the orchestrator's components into a cobra
// command tree: run, resume, list.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/orchestrator/internal/config"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/logger"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/agentstep"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/llmadapter"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/reporter"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/scheduler"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/scope"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/scriptrunner"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/statestore"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/workflow"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/runindex"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/watcher"
	"github.com/ngoclaw/ngoclaw/orchestrator/pkg/safego"
)

const (
	binaryName = "ngoclaw-orchestrator"
	version    = "0.1.0"
)

// Exit codes surfaced to the shell: completed, fatal, or paused.
const (
	ExitCompleted = 0
	ExitFatal     = 1
	ExitPaused    = 2
)

// globalFlags are bound on the root command and read by every subcommand.
type globalFlags struct {
	configPath string
	stateDir   string
}

// NewRootCommand builds the full ngoclaw-orchestrator command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           binaryName,
		Short:         "Drive stateful LLM agent workflows to completion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.yaml (default ~/.ngoclaw/config.yaml)")
	root.PersistentFlags().StringVar(&flags.stateDir, "state-dir", "", "override the journal directory")

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newResumeCommand(flags))
	root.AddCommand(newListCommand(flags))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", binaryName, version)
		},
	})

	return root
}

// deps bundles every component the Scheduler needs, built once per
// invocation from layered config.
type deps struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *statestore.Store
	rep      reporter.Reporter
	executor *agentstep.Executor
	cfgSched scheduler.Config
}

func buildDeps(flags *globalFlags, quiet bool, width int) (*deps, func(), error) {
	if err := config.Bootstrap(zap.NewNop()); err != nil {
		return nil, nil, fmt.Errorf("bootstrap home directory: %w", err)
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, OutputPath: "stderr"})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	cleanup := func() { log.Sync() }

	stateDir := cfg.StateDir
	if flags.stateDir != "" {
		stateDir = flags.stateDir
	}
	if stateDir == "" {
		stateDir = filepath.Join(config.HomeDir(), "state")
	}

	store, err := statestore.New(stateDir, log)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("open state store: %w", err)
	}

	if idx, err := runindex.Open(cfg.RunIndex.Type, cfg.RunIndex.DSN); err != nil {
		log.Warn("run index unavailable, journal saves will not update it", zap.Error(err))
	} else {
		store.WithIndex(idx)
	}

	rep := reporter.NewConsole(os.Stdout, reporter.WithQuiet(quiet), reporter.WithWidth(width))

	executor := &agentstep.Executor{
		LLM:           llmadapter.New(cfg.Claude.Binary, log),
		Scripts:       scriptrunner.New(log),
		Reporter:      rep,
		Logger:        log,
		RetryLimit:    cfg.RetryLimit,
		ScriptTimeout: cfg.ScriptTimeout,
		Model:         cfg.Claude.Model,
		SkipPerms:     cfg.Claude.SkipPermissions,
	}

	return &deps{
		cfg:      cfg,
		log:      log,
		store:    store,
		rep:      rep,
		executor: executor,
		cfgSched: scheduler.Config{
			MaxParallel: cfg.MaxParallel,
			Budget: scheduler.Budget{
				MaxCost:     cfg.Budget.MaxCostUSD,
				MaxDuration: cfg.Budget.MaxWallClock,
			},
		},
	}, cleanup, nil
}

// openScope builds the Prompt/Scope Source for path, inferring
// directory vs zip from whether path is a directory on disk.
func openScope(path string) (scope.Source, workflow.ScopeRef, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, workflow.ScopeRef{}, fmt.Errorf("stat scope %s: %w", path, err)
	}
	if fi.IsDir() {
		return scope.NewDirectory(path), workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: path}, nil
	}
	return scope.NewZip(path), workflow.ScopeRef{Kind: workflow.ScopeZip, Path: path}, nil
}

// runToExit drives w with sched and maps the outcome onto an exit
// code: completed, fatal, or paused.
func runToExit(ctx context.Context, sched *scheduler.Scheduler, w *workflow.Workflow) int {
	if err := sched.Run(ctx, w); err != nil {
		return ExitFatal
	}
	if w.Complete() {
		return ExitCompleted
	}
	return ExitPaused
}

// startScopeWatcher starts a directory watcher reporting edits relevant to
// w's currently active state files, for as long as this command drives
// the workflow. A zip-backed scope has nothing to watch and gets
// a no-op cleanup; a watcher that fails to start (e.g. an unreadable
// directory) only logs a warning; it never fails the run.
func startScopeWatcher(ctx context.Context, ref workflow.ScopeRef, w *workflow.Workflow, rep reporter.Reporter, log *zap.Logger) func() {
	if ref.Kind != workflow.ScopeDirectory {
		return func() {}
	}

	watch, err := watcher.New(ref.Path, rep, log)
	if err != nil {
		log.Warn("directory watcher unavailable", zap.Error(err))
		return func() {}
	}

	safego.Go(log, "scope-watcher", func() {
		watch.Run(ctx, watchedStateNames(w))
	})
	return func() { watch.Close() }
}

// watchedStateNames collects the state files currently reachable by any
// agent in w: its current state plus every call-frame's return state.
func watchedStateNames(w *workflow.Workflow) map[string]bool {
	names := make(map[string]bool)
	for _, a := range w.Agents {
		names[filepath.Base(a.CurrentState)] = true
		for _, f := range a.Stack {
			names[filepath.Base(f.ReturnState)] = true
		}
	}
	return names
}

func newWorkflowID(scopePath string) string {
	base := filepath.Base(strings.TrimSuffix(scopePath, string(os.PathSeparator)))
	return fmt.Sprintf("%s-%s", base, uuid.New().String())
}
