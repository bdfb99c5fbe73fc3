package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence/memory"
)

type captureSink struct {
	entries []*models.AuditEntry
	err     error
}

func (s *captureSink) Append(_ context.Context, entry *models.AuditEntry) error {
	if s.err != nil {
		return s.err
	}

	s.entries = append(s.entries, entry)

	return nil
}

func TestRecorder_StampsEntries(t *testing.T) {
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))

	sink := &captureSink{}
	recorder := NewRecorder(slog.Default(), mockClock, sink)

	entry := Success(models.AuditApplyTemplate, "admin", "content-1", "simple_review",
		models.Change("current_state", "", "draft"))
	recorder.Record(t.Context(), entry)

	require.Len(t, sink.entries, 1)

	recorded := sink.entries[0]
	_, err := uuid.Parse(recorded.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), recorded.Timestamp)
	assert.True(t, recorded.Success)
	require.Len(t, recorded.Changes, 1)
	assert.Equal(t, "draft", recorded.Changes[0].To)
}

func TestRecorder_PreservesExistingStamps(t *testing.T) {
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))

	sink := &captureSink{}
	recorder := NewRecorder(slog.Default(), mockClock, sink)

	stamped := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := &models.AuditEntry{
		ID:         "fixed-id",
		Timestamp:  stamped,
		Operation:  models.AuditRemoveTemplate,
		UserID:     "admin",
		ContentUID: "content-1",
	}
	recorder.Record(t.Context(), entry)

	require.Len(t, sink.entries, 1)
	assert.Equal(t, "fixed-id", sink.entries[0].ID)
	assert.Equal(t, stamped, sink.entries[0].Timestamp)
}

func TestRecorder_SinkFailureDoesNotPropagate(t *testing.T) {
	failing := &captureSink{err: errors.New("sink down")}
	working := &captureSink{}
	recorder := NewRecorder(slog.Default(), clock.NewMock(), failing, working)

	recorder.Record(t.Context(), Failure(models.AuditExecuteTransition, "author", "content-1", "simple_review",
		errors.New("permission denied")))

	require.Len(t, working.entries, 1)
	assert.False(t, working.entries[0].Success)
	assert.Equal(t, "permission denied", working.entries[0].Error)
}

func TestFailure_NilError(t *testing.T) {
	entry := Failure(models.AuditExecuteTransition, "author", "content-1", "", nil)

	assert.False(t, entry.Success)
	assert.Empty(t, entry.Error)
}

func TestRepositorySink(t *testing.T) {
	repo := memory.NewPersistence().AuditRepository()
	recorder := NewRecorder(slog.Default(), clock.New(), NewRepositorySink(repo))

	recorder.Record(t.Context(), Success(models.AuditApplyTemplate, "admin", "content-1", "simple_review"))

	entries, err := repo.EntriesByContentUID(t.Context(), "content-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditApplyTemplate, entries[0].Operation)
	assert.NotEmpty(t, entries[0].ID)
}

type capturePublisher struct {
	keys   []string
	events []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, key string, event eventbus.Event) error {
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)

	return nil
}

func TestBusSink(t *testing.T) {
	publisher := &capturePublisher{}
	recorder := NewRecorder(slog.Default(), clock.New(), NewBusSink(publisher))

	recorder.Record(t.Context(), Success(models.AuditExecuteTransition, "editor", "content-1", "simple_review",
		models.Change("current_state", "review", "published")))

	require.Len(t, publisher.events, 1)
	assert.Equal(t, []string{"content-1"}, publisher.keys)

	recorded, ok := publisher.events[0].(events.AuditRecorded)
	require.True(t, ok)
	assert.Equal(t, events.AuditRecordedEvent, recorded.Type)
	require.NotNil(t, recorded.Entry)
	assert.Equal(t, "content-1", recorded.Entry.ContentUID)
}
