// Package statestore persists the workflow journal as one JSON file per
// workflow id, written atomically: a temp file in the target
// directory, fsynced, then renamed into place so a reader never
// observes a half-written journal.
package statestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	orcherrors "github.com/ngoclaw/ngoclaw/orchestrator/pkg/errors"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/workflow"
)

// indexer is the subset of *runindex.Index the Store needs; narrowed
// to an interface to avoid a hard dependency from statestore onto
// runindex, and so tests can substitute a fake.
type indexer interface {
	Upsert(ctx context.Context, w *workflow.Workflow) error
}

// Store loads and atomically saves workflow journals under one
// directory. One in-process mutex per workflow id serializes
// concurrent saves from the scheduler's goroutines, since the journal
// itself is the only shared mutable state between agents.
type Store struct {
	dir    string
	logger *zap.Logger
	index  indexer // optional; nil disables Run Index sync

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating it if necessary.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, orcherrors.NewInternalErrorWithCause("create state directory", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With(zap.String("component", "state-store")),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// WithIndex attaches a Run Index to sync on every Save. Returns s for
// chaining.
func (s *Store) WithIndex(index indexer) *Store {
	s.index = index
	return s
}

func (s *Store) lockFor(workflowID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[workflowID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[workflowID] = l
	}
	return l
}

func (s *Store) path(workflowID string) string {
	return filepath.Join(s.dir, sanitizeID(workflowID)+".json")
}

// sanitizeID guards against a workflow id that escapes the state
// directory via path separators.
func sanitizeID(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id)
}

// Load reads and decodes the journal for workflowID.
func (s *Store) Load(_ context.Context, workflowID string) (*workflow.Workflow, error) {
	lock := s.lockFor(workflowID)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(s.path(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, orcherrors.NewStateFileNotFoundError(workflowID)
		}
		return nil, orcherrors.NewInternalErrorWithCause("read workflow journal", err)
	}

	var w workflow.Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, orcherrors.NewStateFileMalformedError(workflowID, err)
	}
	return &w, nil
}

// Save writes w's journal atomically: temp file in the same directory,
// fsync, then rename over the final path.
func (s *Store) Save(ctx context.Context, w *workflow.Workflow) error {
	lock := s.lockFor(w.WorkflowID)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return orcherrors.NewInternalErrorWithCause("marshal workflow journal", err)
	}

	finalPath := s.path(w.WorkflowID)

	tmpFile, err := os.CreateTemp(s.dir, "workflow-*.tmp")
	if err != nil {
		return orcherrors.NewInternalErrorWithCause("create temp journal file", err)
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return orcherrors.NewInternalErrorWithCause("write temp journal file", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return orcherrors.NewInternalErrorWithCause("fsync temp journal file", err)
	}
	if err := tmpFile.Close(); err != nil {
		return orcherrors.NewInternalErrorWithCause("close temp journal file", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return orcherrors.NewInternalErrorWithCause("rename journal into place", err)
	}
	cleanup = false

	s.logger.Debug("Saved workflow journal",
		zap.String("workflow_id", w.WorkflowID),
		zap.Int("agents", len(w.Agents)),
	)

	if s.index != nil {
		if err := s.index.Upsert(ctx, w); err != nil {
			// The journal is authoritative; the index is disposable and
			// rebuildable, so a sync failure here is logged, not fatal.
			s.logger.Warn("Run index upsert failed",
				zap.String("workflow_id", w.WorkflowID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// List returns the workflow ids with a journal on disk.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, orcherrors.NewInternalErrorWithCause("list state directory", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// Delete removes the journal for workflowID, if present.
func (s *Store) Delete(_ context.Context, workflowID string) error {
	lock := s.lockFor(workflowID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.path(workflowID)); err != nil && !os.IsNotExist(err) {
		return orcherrors.NewInternalErrorWithCause("delete workflow journal", err)
	}
	return nil
}
