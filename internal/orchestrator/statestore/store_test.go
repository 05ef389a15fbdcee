package statestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	orcherrors "github.com/ngoclaw/ngoclaw/orchestrator/pkg/errors"
	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/workflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := workflow.New("wf-1", workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: "/scope"}, "START.md", time.Now())

	if err := s.Save(ctx, w); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := s.Load(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.WorkflowID != "wf-1" || len(loaded.Agents) != 1 || loaded.Agents[0].CurrentState != "START.md" {
		t.Errorf("Load() = %+v", loaded)
	}
}

func TestLoadMissingWorkflow(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "does-not-exist")
	if !orcherrors.IsStateFileNotFound(err) {
		t.Errorf("Load() error = %v, want StateFileNotFound", err)
	}
}

func TestLoadMalformedJournal(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "wf-bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}

	_, err = s.Load(context.Background(), "wf-bad")
	var appErr *orcherrors.AppError
	if err == nil || !errors.As(err, &appErr) || appErr.Code != orcherrors.CodeStateFileMalformed {
		t.Errorf("Load() error = %v, want StateFileMalformed", err)
	}
}

func TestNoTemporaryFileLeftBehindAfterSave(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w := workflow.New("wf-2", workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: "/scope"}, "START.md", time.Now())
	if err := s.Save(context.Background(), w); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

type fakeIndex struct {
	upserts []string
	fail    bool
}

func (f *fakeIndex) Upsert(_ context.Context, w *workflow.Workflow) error {
	if f.fail {
		return errors.New("fakeIndex: upsert failed")
	}
	f.upserts = append(f.upserts, w.WorkflowID)
	return nil
}

func TestSaveSyncsRunIndex(t *testing.T) {
	s := newTestStore(t)
	idx := &fakeIndex{}
	s.WithIndex(idx)

	w := workflow.New("wf-idx", workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: "/scope"}, "START.md", time.Now())
	if err := s.Save(context.Background(), w); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(idx.upserts) != 1 || idx.upserts[0] != "wf-idx" {
		t.Errorf("index upserts = %v, want [wf-idx]", idx.upserts)
	}
}

func TestSaveSucceedsEvenIfRunIndexFails(t *testing.T) {
	s := newTestStore(t)
	s.WithIndex(&fakeIndex{fail: true})

	w := workflow.New("wf-idx-fail", workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: "/scope"}, "START.md", time.Now())
	if err := s.Save(context.Background(), w); err != nil {
		t.Fatalf("Save() error = %v, want nil even though index upsert fails", err)
	}
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := workflow.New("wf-3", workflow.ScopeRef{Kind: workflow.ScopeDirectory, Path: "/scope"}, "START.md", time.Now())
	if err := s.Save(ctx, w); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	ids, err := s.List(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "wf-3" {
		t.Errorf("List() = %v, %v", ids, err)
	}

	if err := s.Delete(ctx, "wf-3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	ids, err = s.List(ctx)
	if err != nil || len(ids) != 0 {
		t.Errorf("List() after delete = %v, %v", ids, err)
	}
}
