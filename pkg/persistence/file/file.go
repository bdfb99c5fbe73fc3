// Package file provides file-based persistence for workflow instances and
// audit history. Instances live as one JSON document per content UID, the
// audit trail as an append-only JSON Lines file.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/stageflow/stageflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	instanceRepo *InstanceRepository
	auditRepo    *AuditRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		instanceRepo: NewInstanceRepository(cleanRoot),
		auditRepo:    NewAuditRepository(cleanRoot),
	}
}

// InstanceRepository returns the instance repository implementation for file persistence.
func (fp *Persistence) InstanceRepository() persistence.InstanceRepository {
	return fp.instanceRepo
}

// AuditRepository returns the audit repository implementation for file persistence.
func (fp *Persistence) AuditRepository() persistence.AuditRepository {
	return fp.auditRepo
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
