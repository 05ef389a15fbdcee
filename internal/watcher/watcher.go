// Package watcher observes a scope directory for edits to prompt or
// script files while a run or resume command drives a workflow on it,
// and reports them. It never mutates a running agent's
// current_state — the orchestrator always re-reads state file content
// fresh on its next visit regardless of the watcher; the watcher's
// only job is operator visibility via the reporter.
package watcher

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// notifier is the subset of reporter.Reporter the watcher needs.
type notifier interface {
	ScopeChanged(path string)
}

// Watcher watches one directory scope and reports file events for
// names relevant to the workflow currently running on it.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	reporter  notifier
	logger    *zap.Logger
}

// New creates a Watcher on dir. Call Close when done.
func New(dir string, rep notifier, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		reporter:  rep,
		logger:    logger.With(zap.String("component", "watcher")),
	}, nil
}

// Run blocks, emitting a ScopeChanged report for every Write, Create,
// or Rename event relevant to one of watchedNames, until ctx is done.
func (w *Watcher) Run(ctx context.Context, watchedNames map[string]bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, watchedNames)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, watchedNames map[string]bool) {
	relevant := event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
	if !relevant {
		return
	}
	name := baseName(event.Name)
	if len(watchedNames) > 0 && !watchedNames[name] {
		return
	}
	w.reporter.ScopeChanged(event.Name)
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
