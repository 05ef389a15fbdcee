// Package runindex maintains a denormalized, queryable projection of
// every workflow journal — a read-optimized cache the CLI's list
// subcommand consults instead of loading and parsing every journal
// file. The JSON journal (statestore) remains authoritative; this
// index is disposable and can always be rebuilt by replaying
// statestore.List + Load.
package runindex

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ngoclaw/ngoclaw/orchestrator/internal/orchestrator/workflow"
)

// WorkflowIndexModel is the denormalized row upserted after every
// successful journal save.
type WorkflowIndexModel struct {
	WorkflowID   string `gorm:"primaryKey"`
	ScopeKind    string
	ScopePath    string
	AgentCount   int
	RunningCount int
	PausedCount  int
	TotalCost    float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Status is a coarse workflow filter for List.
type Status string

const (
	StatusAny        Status = ""
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusTerminated Status = "terminated"
)

// Index is the gorm-backed secondary index.
type Index struct {
	db *gorm.DB
}

// Open connects to dbType ("sqlite" or "postgres") at dsn and
// auto-migrates the WorkflowIndexModel table.
func Open(dbType, dsn string) (*Index, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported run index type: %s", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open run index: %w", err)
	}

	if err := db.AutoMigrate(&WorkflowIndexModel{}); err != nil {
		return nil, fmt.Errorf("migrate run index: %w", err)
	}

	return &Index{db: db}, nil
}

// Upsert projects w into its index row.
func (i *Index) Upsert(ctx context.Context, w *workflow.Workflow) error {
	running, paused := 0, 0
	for _, a := range w.Agents {
		switch a.Status {
		case workflow.StatusRunning:
			running++
		case workflow.StatusPaused:
			paused++
		}
	}

	row := WorkflowIndexModel{
		WorkflowID:   w.WorkflowID,
		ScopeKind:    string(w.Scope.Kind),
		ScopePath:    w.Scope.Path,
		AgentCount:   len(w.Agents),
		RunningCount: running,
		PausedCount:  paused,
		TotalCost:    w.TotalCost,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}

	return i.db.WithContext(ctx).Save(&row).Error
}

// List returns index rows matching status, newest-updated first.
func (i *Index) List(ctx context.Context, status Status) ([]WorkflowIndexModel, error) {
	q := i.db.WithContext(ctx).Order("updated_at desc")
	switch status {
	case StatusRunning:
		q = q.Where("running_count > 0")
	case StatusPaused:
		q = q.Where("running_count = 0 AND paused_count > 0")
	case StatusTerminated:
		q = q.Where("agent_count = 0")
	}

	var rows []WorkflowIndexModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Get returns the single row for workflowID, or gorm.ErrRecordNotFound.
func (i *Index) Get(ctx context.Context, workflowID string) (*WorkflowIndexModel, error) {
	var row WorkflowIndexModel
	if err := i.db.WithContext(ctx).First(&row, "workflow_id = ?", workflowID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete removes workflowID's row, if present.
func (i *Index) Delete(ctx context.Context, workflowID string) error {
	return i.db.WithContext(ctx).Delete(&WorkflowIndexModel{}, "workflow_id = ?", workflowID).Error
}
