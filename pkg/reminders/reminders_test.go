package reminders_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/persistence/memory"
	"github.com/stageflow/stageflow/pkg/protocol"
	"github.com/stageflow/stageflow/pkg/registry"
	"github.com/stageflow/stageflow/pkg/reminders"
)

type sentReminder struct {
	userIDs      []string
	notification protocol.Notification
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentReminder
	failFor string
}

func (n *fakeNotifier) Notify(_ context.Context, userIDs []string, notification protocol.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.failFor != "" && notification.ContentUID == n.failFor {
		return errors.New("smtp relay unavailable")
	}

	n.sent = append(n.sent, sentReminder{userIDs: userIDs, notification: notification})

	return nil
}

func (n *fakeNotifier) all() []sentReminder {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]sentReminder(nil), n.sent...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *fakePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *fakePublisher) all() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

// reviewTemplate builds the three state review workflow used throughout the
// tests: draft -> review -> published, with a rejection edge back to draft.
func reviewTemplate() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:       "simple_review",
		Name:     "Simple Review",
		Category: models.CategoryEducational,
		Version:  "1.0.0",
		States: []*models.WorkflowState{
			{
				ID:      "draft",
				Title:   "Draft",
				Type:    models.StateTypeDraft,
				Initial: true,
				Permissions: []models.StatePermission{
					{Role: models.RoleAuthor, Actions: []models.Action{models.ActionView, models.ActionEdit, models.ActionSubmit}},
					{Role: models.RoleEditor, Actions: []models.Action{models.ActionView}},
				},
			},
			{
				ID:    "review",
				Title: "In Review",
				Type:  models.StateTypeReview,
				Permissions: []models.StatePermission{
					{Role: models.RoleAuthor, Actions: []models.Action{models.ActionView}},
					{Role: models.RoleEditor, Actions: []models.Action{models.ActionView, models.ActionReview, models.ActionApprove, models.ActionReject}},
				},
			},
			{
				ID:    "published",
				Title: "Published",
				Type:  models.StateTypePublished,
				Final: true,
				Permissions: []models.StatePermission{
					{Role: models.RoleAuthor, Actions: []models.Action{models.ActionView}},
					{Role: models.RoleEditor, Actions: []models.Action{models.ActionView}},
				},
			},
		},
		Transitions: []*models.WorkflowTransition{
			{
				ID:           "submit_for_review",
				Title:        "Submit for Review",
				FromState:    "draft",
				ToState:      "review",
				RequiredRole: models.RoleAuthor,
			},
			{
				ID:           "approve_content",
				Title:        "Approve",
				FromState:    "review",
				ToState:      "published",
				RequiredRole: models.RoleEditor,
			},
			{
				ID:           "reject_to_draft",
				Title:        "Reject",
				FromState:    "review",
				ToState:      "draft",
				RequiredRole: models.RoleEditor,
			},
		},
		DefaultPermissions: map[models.Role][]models.Action{
			models.RoleAdministrator: {models.ActionView, models.ActionManageWorkflow},
		},
	}
}

func standardAssignments() map[models.Role][]string {
	return map[models.Role][]string{
		models.RoleAuthor: {"u-author"},
		models.RoleEditor: {"u-editor"},
		models.RoleViewer: {"u-viewer"},
	}
}

type sweepHarness struct {
	sweeper   *reminders.Sweeper
	clock     *clock.Mock
	instances persistence.InstanceRepository
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newSweepHarness(t *testing.T, adjust func(*reminders.Config)) *sweepHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	reg := registry.NewRegistry(logger)
	require.NoError(t, reg.Register(reviewTemplate()))
	reg.Freeze()

	store := memory.NewPersistence()
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}

	config := reminders.Config{
		Schedule:  "*/15 * * * *",
		MaxIdle:   48 * time.Hour,
		Registry:  reg,
		Instances: store.InstanceRepository(),
		Notifier:  notifier,
		Publisher: publisher,
		Clock:     mock,
	}

	if adjust != nil {
		adjust(&config)
	}

	sweeper, err := reminders.New(logger, config)
	require.NoError(t, err)

	return &sweepHarness{
		sweeper:   sweeper,
		clock:     mock,
		instances: config.Instances,
		notifier:  notifier,
		publisher: publisher,
	}
}

// seed tracks content that last moved the given duration ago.
func (h *sweepHarness) seed(t *testing.T, contentUID, state string, idle time.Duration, assignments map[models.Role][]string) {
	t.Helper()

	touched := h.clock.Now().UTC().Add(-idle)

	require.NoError(t, h.instances.Save(context.Background(), &models.WorkflowInstance{
		ContentUID:      contentUID,
		TemplateID:      "simple_review",
		CurrentState:    state,
		RoleAssignments: assignments,
		AppliedAt:       touched,
		UpdatedAt:       touched,
	}))
}

func TestNew_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	reg := registry.NewRegistry(logger)
	require.NoError(t, reg.Register(reviewTemplate()))
	reg.Freeze()

	store := memory.NewPersistence()

	valid := reminders.Config{
		Schedule:  "0 9 * * *",
		MaxIdle:   72 * time.Hour,
		Registry:  reg,
		Instances: store.InstanceRepository(),
		Notifier:  &fakeNotifier{},
	}

	tests := []struct {
		name    string
		adjust  func(*reminders.Config)
		wantErr string
	}{
		{
			name:   "valid configuration",
			adjust: func(*reminders.Config) {},
		},
		{
			name:    "missing registry",
			adjust:  func(c *reminders.Config) { c.Registry = nil },
			wantErr: "requires a template registry",
		},
		{
			name:    "missing instance repository",
			adjust:  func(c *reminders.Config) { c.Instances = nil },
			wantErr: "requires an instance repository",
		},
		{
			name:    "missing notifier",
			adjust:  func(c *reminders.Config) { c.Notifier = nil },
			wantErr: "requires a notifier",
		},
		{
			name:    "zero max idle",
			adjust:  func(c *reminders.Config) { c.MaxIdle = 0 },
			wantErr: "positive max idle",
		},
		{
			name:    "malformed cron expression",
			adjust:  func(c *reminders.Config) { c.Schedule = "every now and then" },
			wantErr: "invalid cron expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.adjust(&config)

			sweeper, err := reminders.New(logger, config)

			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, sweeper)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, sweeper)
		})
	}
}

func TestSweeper_Sweep_RemindsIdleContent(t *testing.T) {
	h := newSweepHarness(t, nil)

	h.seed(t, "article-stale", "draft", 72*time.Hour, standardAssignments())
	h.seed(t, "article-fresh", "draft", time.Hour, standardAssignments())
	h.seed(t, "article-done", "published", 90*24*time.Hour, standardAssignments())

	report, err := h.sweeper.Sweep(context.Background())
	require.NoError(t, err)

	// The fresh article is inside the idle window and never listed; the
	// published one is listed but skipped as final.
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Reminded)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	sent := h.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"u-author"}, sent[0].userIDs)
	assert.Equal(t, protocol.NotificationReminder, sent[0].notification.Type)
	assert.Equal(t, "article-stale", sent[0].notification.ContentUID)
	assert.Equal(t, "simple_review", sent[0].notification.TemplateID)
	assert.Equal(t, "draft", sent[0].notification.ToState)
	assert.Equal(t, h.clock.Now().UTC(), sent[0].notification.OccurredAt)

	published := h.publisher.all()
	require.Len(t, published, 1)

	reminder, ok := published[0].(events.WorkflowReminder)
	require.True(t, ok, "expected a WorkflowReminder event, got %T", published[0])
	assert.Equal(t, events.WorkflowReminderEvent, reminder.GetType())
	assert.Equal(t, "article-stale", reminder.ContentUID)
	assert.Equal(t, "simple_review", reminder.TemplateID)
	assert.Equal(t, "draft", reminder.StateID)
	assert.Equal(t, []string{"u-author"}, reminder.Recipients)
	assert.Equal(t, h.clock.Now().UTC().Add(-72*time.Hour), reminder.IdleSince)
}

func TestSweeper_Sweep_RecipientsFollowCurrentState(t *testing.T) {
	tests := []struct {
		name           string
		state          string
		assignments    map[models.Role][]string
		wantRecipients []string
	}{
		{
			name:           "draft content nudges the author",
			state:          "draft",
			assignments:    standardAssignments(),
			wantRecipients: []string{"u-author"},
		},
		{
			name:           "review content nudges the editor",
			state:          "review",
			assignments:    standardAssignments(),
			wantRecipients: []string{"u-editor"},
		},
		{
			name:  "administrators can always act",
			state: "review",
			assignments: map[models.Role][]string{
				models.RoleAuthor:        {"u-author"},
				models.RoleAdministrator: {"u-admin"},
			},
			wantRecipients: []string{"u-admin"},
		},
		{
			name:  "duplicate and blank assignments collapse",
			state: "review",
			assignments: map[models.Role][]string{
				models.RoleEditor: {"u-editor", "u-editor", "  "},
			},
			wantRecipients: []string{"u-editor"},
		},
		{
			name:  "viewers alone are never reminded",
			state: "draft",
			assignments: map[models.Role][]string{
				models.RoleViewer: {"u-viewer"},
			},
			wantRecipients: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newSweepHarness(t, nil)
			h.seed(t, "article-1", tt.state, 72*time.Hour, tt.assignments)

			report, err := h.sweeper.Sweep(context.Background())
			require.NoError(t, err)

			sent := h.notifier.all()

			if tt.wantRecipients == nil {
				assert.Equal(t, 1, report.Skipped)
				assert.Empty(t, sent)

				return
			}

			assert.Equal(t, 1, report.Reminded)
			require.Len(t, sent, 1)
			assert.Equal(t, tt.wantRecipients, sent[0].userIDs)
		})
	}
}

func TestSweeper_Sweep_NotifierFailureDoesNotAbort(t *testing.T) {
	h := newSweepHarness(t, nil)
	h.notifier.failFor = "article-a"

	h.seed(t, "article-a", "draft", 96*time.Hour, standardAssignments())
	h.seed(t, "article-b", "draft", 72*time.Hour, standardAssignments())

	report, err := h.sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Reminded)
	assert.Equal(t, 1, report.Failed)

	sent := h.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "article-b", sent[0].notification.ContentUID)

	// Only delivered reminders are announced on the bus.
	require.Len(t, h.publisher.all(), 1)
}

func TestSweeper_Sweep_SkipsUnregisteredTemplate(t *testing.T) {
	h := newSweepHarness(t, nil)

	touched := h.clock.Now().UTC().Add(-72 * time.Hour)
	require.NoError(t, h.instances.Save(context.Background(), &models.WorkflowInstance{
		ContentUID:      "article-orphan",
		TemplateID:      "retired_template",
		CurrentState:    "draft",
		RoleAssignments: standardAssignments(),
		AppliedAt:       touched,
		UpdatedAt:       touched,
	}))

	report, err := h.sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, h.notifier.all())
}

func TestSweeper_Sweep_PagesThroughStore(t *testing.T) {
	h := newSweepHarness(t, func(c *reminders.Config) {
		c.BatchSize = 2
	})

	uids := []string{"article-1", "article-2", "article-3", "article-4", "article-5"}
	for i, uid := range uids {
		h.seed(t, uid, "draft", 72*time.Hour+time.Duration(i)*time.Minute, standardAssignments())
	}

	report, err := h.sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(uids), report.Scanned)
	assert.Equal(t, len(uids), report.Reminded)
	assert.Len(t, h.notifier.all(), len(uids))
}

func TestSweeper_Sweep_EmptyStore(t *testing.T) {
	h := newSweepHarness(t, nil)

	report, err := h.sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &reminders.SweepReport{}, report)
	assert.Empty(t, h.notifier.all())
}

func TestSweeper_StartStop(t *testing.T) {
	h := newSweepHarness(t, nil)

	ctx := context.Background()
	require.NoError(t, h.sweeper.Start(ctx))
	require.NoError(t, h.sweeper.Stop(ctx))
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	h := newSweepHarness(t, nil)

	require.NoError(t, h.sweeper.Stop(context.Background()))
}
