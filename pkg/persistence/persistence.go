// Package persistence provides data storage abstraction for workflow
// instances and audit history.
package persistence

import (
	"context"
	"time"

	"github.com/stageflow/stageflow/pkg/models"
)

// ListInstancesOptions filters and paginates instance listings.
type ListInstancesOptions struct {
	TemplateID    string
	CurrentState  string
	UpdatedBefore *time.Time
	Limit         int
	Offset        int
	SortBy        string // "applied_at", "updated_at" or "content_uid"
	SortOrder     string // "asc" or "desc"
}

// InstanceListResult carries one page of instances plus paging metadata.
type InstanceListResult struct {
	Instances   []*models.WorkflowInstance
	TotalCount  int64
	HasNextPage bool
}

// InstanceRepository stores workflow instances keyed by content UID.
//
// Implementations exchange deep copies with callers: mutating a returned
// instance never changes stored state until it is written back. Save is
// create-only and fails with ErrInstanceExists when the content UID is
// already tracked. Update applies optimistic concurrency: it succeeds only
// when the stored version matches the incoming instance's Version, bumps the
// version, and otherwise fails with ErrVersionConflict.
type InstanceRepository interface {
	GetByContentUID(ctx context.Context, contentUID string) (*models.WorkflowInstance, error)
	Save(ctx context.Context, instance *models.WorkflowInstance) error
	Update(ctx context.Context, instance *models.WorkflowInstance) error
	Delete(ctx context.Context, contentUID string) error
	ListInstances(ctx context.Context, opts ListInstancesOptions) (*InstanceListResult, error)
}

// AuditRepository appends and queries immutable audit entries. Entries are
// never updated or deleted.
type AuditRepository interface {
	AppendEntry(ctx context.Context, entry *models.AuditEntry) error
	EntriesByContentUID(ctx context.Context, contentUID string) ([]*models.AuditEntry, error)
	EntriesByUser(ctx context.Context, userID string) ([]*models.AuditEntry, error)
}

// Persistence bundles the repositories a deployment backs with one store.
type Persistence interface {
	InstanceRepository() InstanceRepository
	AuditRepository() AuditRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
