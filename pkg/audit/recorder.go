// Package audit records every state-changing workflow operation, successful
// or failed. Recording is fire-and-forget from the engine's point of view: a
// sink failure is logged and swallowed so audit problems never fail the
// operation they describe.
package audit

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/protocol"
)

// Recorder stamps audit entries with identity and time, then fans them out
// to every configured sink.
type Recorder struct {
	logger *slog.Logger
	clock  clock.Clock
	sinks  []protocol.AuditSink
}

// NewRecorder creates a recorder writing to the given sinks. The clock is
// injected so tests can pin entry timestamps; nil means wall clock.
func NewRecorder(logger *slog.Logger, clk clock.Clock, sinks ...protocol.AuditSink) *Recorder {
	if clk == nil {
		clk = clock.New()
	}

	return &Recorder{
		logger: logger.With("module", "audit"),
		clock:  clk,
		sinks:  sinks,
	}
}

// Record stamps the entry and appends it to every sink. Sink errors are
// logged, never returned.
func (r *Recorder) Record(ctx context.Context, entry *models.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.clock.Now().UTC()
	}

	for _, sink := range r.sinks {
		err := sink.Append(ctx, entry)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to append audit entry",
				"entry_id", entry.ID,
				"operation", entry.Operation,
				"content_uid", entry.ContentUID,
				"error", err,
			)
		}
	}
}

// Success builds an entry for a committed operation.
func Success(operation models.AuditOperation, userID, contentUID, templateID string, changes ...models.ChangeDescriptor) *models.AuditEntry {
	return &models.AuditEntry{
		Operation:  operation,
		UserID:     userID,
		ContentUID: contentUID,
		TemplateID: templateID,
		Success:    true,
		Changes:    changes,
	}
}

// Failure builds an entry for a rejected or failed operation.
func Failure(operation models.AuditOperation, userID, contentUID, templateID string, opErr error) *models.AuditEntry {
	entry := &models.AuditEntry{
		Operation:  operation,
		UserID:     userID,
		ContentUID: contentUID,
		TemplateID: templateID,
		Success:    false,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}

	return entry
}
