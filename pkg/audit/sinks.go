package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// RepositorySink persists entries through an audit repository.
type RepositorySink struct {
	repo persistence.AuditRepository
}

func NewRepositorySink(repo persistence.AuditRepository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Append(ctx context.Context, entry *models.AuditEntry) error {
	return s.repo.AppendEntry(ctx, entry)
}

// LogSink mirrors entries into the structured log, useful when no durable
// audit store is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("module", "audit_log")}
}

func (s *LogSink) Append(ctx context.Context, entry *models.AuditEntry) error {
	s.logger.InfoContext(ctx, "Audit entry recorded",
		"entry_id", entry.ID,
		"operation", entry.Operation,
		"user_id", entry.UserID,
		"content_uid", entry.ContentUID,
		"template_id", entry.TemplateID,
		"success", entry.Success,
		"error", entry.Error,
	)

	return nil
}

// BusSink publishes entries onto the event bus so external consumers can
// follow the trail.
type BusSink struct {
	publisher eventbus.EventPublisher
}

func NewBusSink(publisher eventbus.EventPublisher) *BusSink {
	return &BusSink{publisher: publisher}
}

func (s *BusSink) Append(ctx context.Context, entry *models.AuditEntry) error {
	event := events.AuditRecorded{
		BaseEvent: events.NewBaseEvent(events.AuditRecordedEvent, entry.ContentUID),
		Entry:     entry,
	}

	err := s.publisher.Publish(ctx, entry.ContentUID, event)
	if err != nil {
		return fmt.Errorf("failed to publish audit entry: %w", err)
	}

	return nil
}
