// Package memory provides an in-memory persistence implementation for tests
// and single-process deployments.
package memory

import (
	"context"

	"github.com/stageflow/stageflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface in process
// memory. Nothing survives a restart.
type Persistence struct {
	instanceRepo *InstanceRepository
	auditRepo    *AuditRepository
}

// NewPersistence creates a new in-memory persistence layer.
func NewPersistence() *Persistence {
	return &Persistence{
		instanceRepo: NewInstanceRepository(),
		auditRepo:    NewAuditRepository(),
	}
}

// InstanceRepository returns the instance repository implementation.
func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instanceRepo
}

// AuditRepository returns the audit repository implementation.
func (p *Persistence) AuditRepository() persistence.AuditRepository {
	return p.auditRepo
}

// HealthCheck always succeeds for in-memory storage.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

// Close performs any necessary cleanup. There is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
