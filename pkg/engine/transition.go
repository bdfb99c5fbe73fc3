package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stageflow/stageflow/pkg/audit"
	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/otelhelper"
	"github.com/stageflow/stageflow/pkg/permissions"
	"github.com/stageflow/stageflow/pkg/protocol"
)

// TransitionRequest moves content along one of its template's transitions on
// behalf of an actor holding ActingRole.
type TransitionRequest struct {
	ContentUID   string
	TransitionID string
	ActorID      string
	ActingRole   models.Role
	Comments     string
}

// TransitionResult reports the committed move. AvailableTransitions lists
// what the acting role can do from the new state, so interactive callers can
// render follow-up choices without a second round trip.
type TransitionResult struct {
	Instance             *models.WorkflowInstance
	FromState            string
	AvailableTransitions []*models.WorkflowTransition
	FinalState           bool
}

// ExecuteTransition advances content to a new state. The transition must
// leave the instance's current state, the acting role must either hold the
// transition's required role or hold manage_workflow in the current state,
// and any attached conditions must pass. The mutation is committed before
// events and notifications fire; a caller disconnecting after commit does not
// undo the move. Exactly one audit entry is recorded, success or failure.
func (e *Engine) ExecuteTransition(ctx context.Context, req TransitionRequest) (result *TransitionResult, err error) {
	const op = "execute_transition"

	start := e.clock.Now()
	templateID := ""

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute_transition",
		attribute.String(otelhelper.OperationKey, op),
		attribute.String(otelhelper.ContentUIDKey, req.ContentUID),
		attribute.String(otelhelper.TransitionIDKey, req.TransitionID),
		attribute.String(otelhelper.ActorIDKey, req.ActorID),
		attribute.String(otelhelper.ActorRoleKey, string(req.ActingRole)),
	)
	defer span.End()

	defer func() {
		e.metrics.ObserveOperation(op, err == nil, e.clock.Since(start))

		if err != nil {
			otelhelper.SetError(span, err)
			e.record(ctx, audit.Failure(models.AuditExecuteTransition, req.ActorID, req.ContentUID, templateID, err))
		}
	}()

	lock := e.locks.get(req.ContentUID)
	lock.Lock()
	defer lock.Unlock()

	instance, err := e.instances.GetByContentUID(ctx, req.ContentUID)
	if err != nil {
		return nil, err
	}

	templateID = instance.TemplateID

	template, err := e.template(op, instance)
	if err != nil {
		return nil, err
	}

	transition := template.Transition(req.TransitionID)
	if transition == nil {
		return nil, newOperationError(op, req.ContentUID, ErrTransitionNotFound,
			fmt.Sprintf("template %s defines no transition %s", template.ID, req.TransitionID))
	}

	if transition.FromState != instance.CurrentState {
		return nil, newOperationError(op, req.ContentUID, ErrInvalidTransition,
			fmt.Sprintf("transition %s leaves state %s but content is in state %s",
				transition.ID, transition.FromState, instance.CurrentState))
	}

	if !permissions.CanExecute(template, transition, req.ActingRole) {
		return nil, newOperationError(op, req.ContentUID, ErrPermissionDenied,
			fmt.Sprintf("role %s may not execute transition %s, which requires role %s",
				req.ActingRole, transition.ID, transition.RequiredRole))
	}

	err = e.checkConditions(ctx, transition, req)
	if err != nil {
		return nil, err
	}

	fromState := instance.CurrentState
	now := e.clock.Now().UTC()

	instance.CurrentState = transition.ToState
	instance.UpdatedAt = now
	instance.History = append(instance.History, models.HistoryEntry{
		Timestamp:    now,
		FromState:    fromState,
		ToState:      transition.ToState,
		TransitionID: transition.ID,
		UserID:       req.ActorID,
		Comments:     req.Comments,
	})

	err = e.instances.Update(ctx, instance)
	if err != nil {
		return nil, err
	}

	destination := template.State(transition.ToState)
	finalState := destination != nil && destination.Final

	e.record(ctx, audit.Success(models.AuditExecuteTransition, req.ActorID, req.ContentUID, template.ID,
		models.Change("current_state", fromState, instance.CurrentState)))

	e.publish(ctx, req.ContentUID, events.TransitionExecuted{
		BaseEvent:    events.NewBaseEvent(events.TransitionExecutedEvent, req.ContentUID),
		TemplateID:   template.ID,
		TransitionID: transition.ID,
		FromState:    fromState,
		ToState:      instance.CurrentState,
		ActorID:      req.ActorID,
		Comments:     req.Comments,
		FinalState:   finalState,
	})

	if finalState {
		e.publish(ctx, req.ContentUID, events.FinalStateReached{
			BaseEvent:  events.NewBaseEvent(events.FinalStateReachedEvent, req.ContentUID),
			TemplateID: template.ID,
			StateID:    instance.CurrentState,
			ActorID:    req.ActorID,
		})
	}

	e.notifyTransition(ctx, template, instance, transition, req)

	e.logger.InfoContext(ctx, "Executed workflow transition",
		"content_uid", req.ContentUID,
		"transition_id", transition.ID,
		"from_state", fromState,
		"to_state", instance.CurrentState,
		"actor_id", req.ActorID)

	return &TransitionResult{
		Instance:             instance,
		FromState:            fromState,
		AvailableTransitions: permissions.AllowedTransitions(template, instance.CurrentState, req.ActingRole),
		FinalState:           finalState,
	}, nil
}

// checkConditions evaluates the transition's attached conditions. Comment
// checks are local; content length checks consult the content store under the
// collaborator timeout and fail closed when the store is unavailable.
func (e *Engine) checkConditions(ctx context.Context, transition *models.WorkflowTransition, req TransitionRequest) error {
	const op = "execute_transition"

	conditions := transition.Conditions
	if conditions.Empty() {
		return nil
	}

	if conditions.RequireComments && strings.TrimSpace(req.Comments) == "" {
		return newOperationError(op, req.ContentUID, ErrConditionNotMet,
			fmt.Sprintf("transition %s requires a comment", transition.ID))
	}

	if conditions.MinContentLength > 0 {
		if e.content == nil {
			return newOperationError(op, req.ContentUID, ErrCollaborator,
				fmt.Sprintf("transition %s requires a content length check but no content store is configured", transition.ID))
		}

		lengthCtx, cancel := e.collaboratorContext(ctx)
		defer cancel()

		length, err := e.content.ContentLength(lengthCtx, req.ContentUID)
		if err != nil {
			return newOperationError(op, req.ContentUID, ErrCollaborator,
				fmt.Sprintf("failed to read content length: %v", err))
		}

		if length < conditions.MinContentLength {
			return newOperationError(op, req.ContentUID, ErrConditionNotMet,
				fmt.Sprintf("content length %d is below the required minimum %d", length, conditions.MinContentLength))
		}
	}

	return nil
}

// notifyTransition tells the users responsible for the destination state that
// content arrived there. Recipients are users holding any action in the new
// state, minus the actor. Failures are logged, never propagated: the
// transition is already committed.
func (e *Engine) notifyTransition(ctx context.Context, template *models.WorkflowTemplate, instance *models.WorkflowInstance, transition *models.WorkflowTransition, req TransitionRequest) {
	if e.notifier == nil {
		return
	}

	recipients := stateParticipants(template, instance, instance.CurrentState, req.ActorID)
	if len(recipients) == 0 {
		return
	}

	notification := protocol.Notification{
		Type:         protocol.NotificationTransition,
		ContentUID:   instance.ContentUID,
		TemplateID:   template.ID,
		TransitionID: transition.ID,
		FromState:    transition.FromState,
		ToState:      instance.CurrentState,
		ActorID:      req.ActorID,
		Comments:     req.Comments,
		OccurredAt:   e.clock.Now().UTC(),
	}

	notifyCtx, cancel := e.sideEffectContext(ctx)
	defer cancel()

	err := e.notifier.Notify(notifyCtx, recipients, notification)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to notify state participants",
			"content_uid", instance.ContentUID,
			"to_state", instance.CurrentState,
			"recipients", len(recipients),
			"error", err)
	}
}

// stateParticipants returns the users who can act in a state, deduplicated
// and sorted, excluding the current actor.
func stateParticipants(template *models.WorkflowTemplate, instance *models.WorkflowInstance, stateID, excludeUserID string) []string {
	seen := make(map[string]struct{})

	for role, users := range instance.RoleAssignments {
		if len(permissions.AvailableActions(template, stateID, role)) == 0 {
			continue
		}

		for _, user := range users {
			user = strings.TrimSpace(user)
			if user == "" || user == excludeUserID {
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
