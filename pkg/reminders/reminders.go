// Package reminders sweeps the instance store for content parked too long in
// a non-final state and nudges the users whose roles can still move it.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"

	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/permissions"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/protocol"
	"github.com/stageflow/stageflow/pkg/registry"
)

// DefaultBatchSize is how many idle instances one sweep page fetches when the
// configuration does not say otherwise.
const DefaultBatchSize = 100

// Config wires the sweeper's collaborators. Registry, Instances and Notifier
// are required; Publisher is optional and Clock defaults to wall time.
type Config struct {
	// Schedule is a standard five-field cron expression controlling when
	// Start fires sweeps.
	Schedule string

	// MaxIdle is how long an instance may sit unchanged in a non-final
	// state before its participants are reminded.
	MaxIdle time.Duration

	BatchSize int

	Registry  *registry.Registry
	Instances persistence.InstanceRepository
	Notifier  protocol.Notifier
	Publisher eventbus.EventPublisher
	Clock     clock.Clock
}

// Sweeper periodically scans for idle workflow instances and reminds the
// users who can act on them. Sweeps never mutate instances; the sweeper is a
// pure reader of workflow state.
type Sweeper struct {
	logger    *slog.Logger
	registry  *registry.Registry
	instances persistence.InstanceRepository
	notifier  protocol.Notifier
	publisher eventbus.EventPublisher
	clock     clock.Clock

	schedule  string
	maxIdle   time.Duration
	batchSize int

	cron *cron.Cron
}

// SweepReport summarizes one pass over the instance store.
type SweepReport struct {
	Scanned  int `json:"scanned"`
	Reminded int `json:"reminded"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func New(logger *slog.Logger, cfg Config) (*Sweeper, error) {
	if cfg.Registry == nil {
		return nil, errors.New("reminder sweeper requires a template registry")
	}

	if cfg.Instances == nil {
		return nil, errors.New("reminder sweeper requires an instance repository")
	}

	if cfg.Notifier == nil {
		return nil, errors.New("reminder sweeper requires a notifier")
	}

	if cfg.MaxIdle <= 0 {
		return nil, errors.New("reminder sweeper requires a positive max idle duration")
	}

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.Schedule, err)
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Sweeper{
		logger:    logger.With("module", "reminder_sweeper"),
		registry:  cfg.Registry,
		instances: cfg.Instances,
		notifier:  cfg.Notifier,
		publisher: cfg.Publisher,
		clock:     cfg.Clock,
		schedule:  cfg.Schedule,
		maxIdle:   cfg.MaxIdle,
		batchSize: cfg.BatchSize,
	}, nil
}

// Start schedules recurring sweeps and returns once the scheduler is running.
// Overlapping runs are skipped rather than stacked.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting reminder sweeper", "schedule", s.schedule, "max_idle", s.maxIdle)

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.schedule, func() {
		report, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("Reminder sweep failed", "error", err)

			return
		}

		s.logger.Info("Reminder sweep finished",
			"scanned", report.Scanned,
			"reminded", report.Reminded,
			"skipped", report.Skipped,
			"failed", report.Failed)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Reminder sweeper started successfully")

	return nil
}

// Stop halts the scheduler and waits for an in-flight sweep to finish, or for
// ctx to expire, whichever comes first.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.logger.Info("Stopping reminder sweeper")

	if s.cron == nil {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Stopped reminder scheduler")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep pages through instances that have not moved since the idle cutoff and
// reminds, per instance, the users whose roles hold at least one transition
// out of the current state. Content in a final state and content whose
// template has left the registry are skipped. Delivery failures are counted
// and logged but never abort the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	cutoff := s.clock.Now().UTC().Add(-s.maxIdle)
	report := &SweepReport{}

	offset := 0

	for {
		page, err := s.instances.ListInstances(ctx, persistence.ListInstancesOptions{
			UpdatedBefore: &cutoff,
			Limit:         s.batchSize,
			Offset:        offset,
			SortBy:        "updated_at",
			SortOrder:     "asc",
		})
		if err != nil {
			return report, fmt.Errorf("failed to list idle instances: %w", err)
		}

		for _, instance := range page.Instances {
			report.Scanned++
			s.remind(ctx, instance, report)
		}

		if len(page.Instances) == 0 || !page.HasNextPage {
			return report, nil
		}

		offset += len(page.Instances)
	}
}

func (s *Sweeper) remind(ctx context.Context, instance *models.WorkflowInstance, report *SweepReport) {
	logger := s.logger.With("content_uid", instance.ContentUID, "current_state", instance.CurrentState)

	template, err := s.registry.Get(instance.TemplateID)
	if err != nil {
		report.Skipped++
		logger.Warn("Skipping reminder for unregistered template", "template_id", instance.TemplateID)

		return
	}

	state := template.State(instance.CurrentState)
	if state == nil || state.Final {
		report.Skipped++

		return
	}

	recipients := pendingParticipants(template, instance)
	if len(recipients) == 0 {
		report.Skipped++
		logger.Debug("No assigned user can move idle content, skipping reminder")

		return
	}

	notification := protocol.Notification{
		Type:       protocol.NotificationReminder,
		ContentUID: instance.ContentUID,
		TemplateID: template.ID,
		ToState:    instance.CurrentState,
		OccurredAt: s.clock.Now().UTC(),
	}

	err = s.notifier.Notify(ctx, recipients, notification)
	if err != nil {
		report.Failed++
		logger.Error("Failed to deliver reminder", "recipients", len(recipients), "error", err)

		return
	}

	report.Reminded++
	s.publishReminder(ctx, instance, recipients)

	logger.Info("Reminded idle workflow participants",
		"recipients", len(recipients),
		"idle_since", instance.UpdatedAt)
}

func (s *Sweeper) publishReminder(ctx context.Context, instance *models.WorkflowInstance, recipients []string) {
	if s.publisher == nil {
		return
	}

	event := events.WorkflowReminder{
		BaseEvent:  events.NewBaseEvent(events.WorkflowReminderEvent, instance.ContentUID),
		TemplateID: instance.TemplateID,
		StateID:    instance.CurrentState,
		IdleSince:  instance.UpdatedAt,
		Recipients: recipients,
	}

	err := s.publisher.Publish(ctx, instance.ContentUID, event)
	if err != nil {
		s.logger.Error("Failed to publish reminder event",
			"content_uid", instance.ContentUID,
			"error", err)
	}
}

// pendingParticipants returns the users whose roles hold at least one
// transition out of the instance's current state, deduplicated and sorted.
// Users who can only view the parked content are not reminded; they have
// nothing to act on.
func pendingParticipants(template *models.WorkflowTemplate, instance *models.WorkflowInstance) []string {
	seen := make(map[string]struct{})

	for role, users := range instance.RoleAssignments {
		if len(permissions.AllowedTransitions(template, instance.CurrentState, role)) == 0 {
			continue
		}

		for _, user := range users {
			user = strings.TrimSpace(user)
			if user == "" {
				continue
			}

			seen[user] = struct{}{}
		}
	}

	recipients := make([]string, 0, len(seen))
	for user := range seen {
		recipients = append(recipients, user)
	}

	slices.Sort(recipients)

	return recipients
}
