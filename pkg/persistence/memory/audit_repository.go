package memory

import (
	"context"
	"sync"

	"github.com/stageflow/stageflow/pkg/models"
)

// AuditRepository keeps audit entries in append order.
type AuditRepository struct {
	mu      sync.RWMutex
	entries []*models.AuditEntry
}

// NewAuditRepository creates a new in-memory audit repository.
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// AppendEntry records an audit entry.
func (r *AuditRepository) AppendEntry(_ context.Context, entry *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry.Clone())

	return nil
}

// EntriesByContentUID returns the audit trail for one piece of content, in
// append order.
func (r *AuditRepository) EntriesByContentUID(_ context.Context, contentUID string) ([]*models.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.AuditEntry, 0)

	for _, entry := range r.entries {
		if entry.ContentUID == contentUID {
			matched = append(matched, entry.Clone())
		}
	}

	return matched, nil
}

// EntriesByUser returns every entry recorded for operations by the user, in
// append order.
func (r *AuditRepository) EntriesByUser(_ context.Context, userID string) ([]*models.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.AuditEntry, 0)

	for _, entry := range r.entries {
		if entry.UserID == userID {
			matched = append(matched, entry.Clone())
		}
	}

	return matched, nil
}
