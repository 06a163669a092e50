// Package store persists audit runs, their section states and final
// results, behind a backend-neutral interface.
package store

import (
	"context"

	"github.com/growthlens/audit-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Domain string          `json:"domain,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for audit runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, company model.CompanyInfo) (*model.AuditRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.AggregatedResult) error
	GetRun(ctx context.Context, runID string) (*model.AuditRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.AuditRun, error)
	DeleteRun(ctx context.Context, runID string) error

	// Sections. UpsertSection replaces any previous state for the same
	// (run, section) pair; GetRun returns sections in canonical order.
	UpsertSection(ctx context.Context, runID string, state model.SectionState) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
