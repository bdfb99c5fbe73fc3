package protocol

import (
	"context"

	"github.com/stageflow/stageflow/pkg/models"
)

// AuditSink receives finished audit entries. Implementations decide where
// they land (log stream, database, event bus).
type AuditSink interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
}
