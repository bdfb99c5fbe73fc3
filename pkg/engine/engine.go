// Package engine executes workflow operations against tracked content. It is
// the single writer of workflow instances: template application, transition
// execution and template removal all go through here, serialized per content
// UID, with one audit entry recorded per operation. Reads share the same
// per-content lock so callers always observe a committed state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/stageflow/stageflow/pkg/audit"
	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/metrics"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/otelhelper"
	"github.com/stageflow/stageflow/pkg/permissions"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/protocol"
	"github.com/stageflow/stageflow/pkg/registry"
)

// DefaultCollaboratorTimeout bounds calls to external collaborators (content
// store, notifier, event bus) so a slow dependency cannot hold a content lock
// indefinitely.
const DefaultCollaboratorTimeout = 5 * time.Second

// Config wires the engine's collaborators. Registry and Instances are
// required; everything else degrades gracefully when absent.
type Config struct {
	Registry            *registry.Registry
	Instances           persistence.InstanceRepository
	Recorder            *audit.Recorder
	ContentStore        protocol.ContentStore
	Notifier            protocol.Notifier
	Publisher           eventbus.EventPublisher
	Metrics             *metrics.Metrics
	Tracer              trace.Tracer
	Clock               clock.Clock
	CollaboratorTimeout time.Duration
}

// Engine coordinates workflow operations. All exported methods are safe for
// concurrent use; operations on the same content UID are serialized.
type Engine struct {
	logger    *slog.Logger
	registry  *registry.Registry
	instances persistence.InstanceRepository
	recorder  *audit.Recorder
	content   protocol.ContentStore
	notifier  protocol.Notifier
	publisher eventbus.EventPublisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	clock     clock.Clock
	locks     *keyedMutex
	timeout   time.Duration
}

func New(logger *slog.Logger, cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, errors.New("engine requires a template registry")
	}

	if cfg.Instances == nil {
		return nil, errors.New("engine requires an instance repository")
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("stageflow")
	}

	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = DefaultCollaboratorTimeout
	}

	return &Engine{
		logger:    logger.With("module", "engine"),
		registry:  cfg.Registry,
		instances: cfg.Instances,
		recorder:  cfg.Recorder,
		content:   cfg.ContentStore,
		notifier:  cfg.Notifier,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		clock:     cfg.Clock,
		locks:     newKeyedMutex(),
		timeout:   cfg.CollaboratorTimeout,
	}, nil
}

// StateView is the read model returned by GetState: the instance's position
// in its workflow plus what the asking role can do from there.
type StateView struct {
	ContentUID           string                       `json:"content_uid"`
	TemplateID           string                       `json:"template_id"`
	TemplateName         string                       `json:"template_name"`
	TemplateVersion      string                       `json:"template_version"`
	CurrentState         string                       `json:"current_state"`
	StateTitle           string                       `json:"state_title"`
	StateType            models.StateType             `json:"state_type"`
	FinalState           bool                         `json:"final_state"`
	AvailableActions     []models.Action              `json:"available_actions"`
	AvailableTransitions []*models.WorkflowTransition `json:"available_transitions"`
	RoleAssignments      map[models.Role][]string     `json:"role_assignments"`
	History              []models.HistoryEntry        `json:"history"`
	AppliedAt            time.Time                    `json:"applied_at"`
	UpdatedAt            time.Time                    `json:"updated_at"`
	Version              int64                        `json:"version"`
}

// GetState reports the workflow position of a piece of content. Available
// actions and transitions are filtered to the given role. GetState is a pure
// read: no audit entry, no events.
func (e *Engine) GetState(ctx context.Context, contentUID string, role models.Role) (*StateView, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.get_state",
		attribute.String(otelhelper.ContentUIDKey, contentUID),
		attribute.String(otelhelper.ActorRoleKey, string(role)),
	)
	defer span.End()

	lock := e.locks.get(contentUID)
	lock.RLock()
	defer lock.RUnlock()

	instance, err := e.instances.GetByContentUID(ctx, contentUID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	template, err := e.template("get_state", instance)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	state := template.State(instance.CurrentState)
	if state == nil {
		err = newOperationError("get_state", contentUID,
			fmt.Errorf("instance is in state %s which template %s does not define", instance.CurrentState, template.ID), "")
		otelhelper.SetError(span, err)

		return nil, err
	}

	return &StateView{
		ContentUID:           instance.ContentUID,
		TemplateID:           template.ID,
		TemplateName:         template.Name,
		TemplateVersion:      template.Version,
		CurrentState:         state.ID,
		StateTitle:           state.Title,
		StateType:            state.Type,
		FinalState:           state.Final,
		AvailableActions:     permissions.AvailableActions(template, state.ID, role),
		AvailableTransitions: permissions.AllowedTransitions(template, state.ID, role),
		RoleAssignments:      instance.RoleAssignments,
		History:              instance.History,
		AppliedAt:            instance.AppliedAt,
		UpdatedAt:            instance.UpdatedAt,
		Version:              instance.Version,
	}, nil
}

// template resolves the template an instance references. Instances normally
// outlive process restarts while the registry is rebuilt from configuration,
// so a missing template here means the deployment dropped a template that
// still has live content.
func (e *Engine) template(op string, instance *models.WorkflowInstance) (*models.WorkflowTemplate, error) {
	template, err := e.registry.Get(instance.TemplateID)
	if err != nil {
		return nil, newOperationError(op, instance.ContentUID, err,
			fmt.Sprintf("instance references template %s which is not registered", instance.TemplateID))
	}

	return template, nil
}

// collaboratorContext bounds a collaborator call made while the operation is
// still in flight.
func (e *Engine) collaboratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// sideEffectContext bounds post-commit work (audit, events, notifications).
// It detaches from the caller's cancellation: once a mutation is committed,
// the caller going away must not suppress its side effects.
func (e *Engine) sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
}

func (e *Engine) record(ctx context.Context, entry *models.AuditEntry) {
	if e.recorder == nil {
		return
	}

	recordCtx, cancel := e.sideEffectContext(ctx)
	defer cancel()

	e.recorder.Record(recordCtx, entry)
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	publishCtx, cancel := e.sideEffectContext(ctx)
	defer cancel()

	err := e.publisher.Publish(publishCtx, key, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"content_uid", key,
			"error", err)
	}
}
