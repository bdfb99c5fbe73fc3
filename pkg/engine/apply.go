package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stageflow/stageflow/pkg/audit"
	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/otelhelper"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// ApplyRequest attaches a registered template to a piece of content.
type ApplyRequest struct {
	TemplateID      string
	ContentUID      string
	ActorID         string
	RoleAssignments map[models.Role][]string

	// Force replaces an existing workflow instead of failing with a
	// conflict. BackupExisting additionally snapshots the replaced
	// workflow, including the content system's native state, so a later
	// removal can restore it.
	Force          bool
	BackupExisting bool
}

// ApplyResult reports the freshly created instance together with any
// non-fatal validation warnings the template carries.
type ApplyResult struct {
	Instance    *models.WorkflowInstance
	Warnings    []models.ValidationIssue
	Replaced    bool
	BackupTaken bool
}

// ApplyTemplate starts a workflow on content: it validates role assignments
// against the roles the template references, refuses to clobber an existing
// workflow unless forced, and creates the instance in the template's initial
// state. Exactly one audit entry is recorded, success or failure.
func (e *Engine) ApplyTemplate(ctx context.Context, req ApplyRequest) (result *ApplyResult, err error) {
	const op = "apply_template"

	start := e.clock.Now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.apply_template",
		attribute.String(otelhelper.OperationKey, op),
		attribute.String(otelhelper.TemplateIDKey, req.TemplateID),
		attribute.String(otelhelper.ContentUIDKey, req.ContentUID),
		attribute.String(otelhelper.ActorIDKey, req.ActorID),
	)
	defer span.End()

	defer func() {
		e.metrics.ObserveOperation(op, err == nil, e.clock.Since(start))

		if err != nil {
			otelhelper.SetError(span, err)
			e.record(ctx, audit.Failure(models.AuditApplyTemplate, req.ActorID, req.ContentUID, req.TemplateID, err))
		}
	}()

	lock := e.locks.get(req.ContentUID)
	lock.Lock()
	defer lock.Unlock()

	template, err := e.registry.Get(req.TemplateID)
	if err != nil {
		return nil, err
	}

	err = validateAssignments(template, req.RoleAssignments)
	if err != nil {
		return nil, newOperationError(op, req.ContentUID, ErrRoleAssignmentsIncomplete, err.Error())
	}

	existing, err := e.instances.GetByContentUID(ctx, req.ContentUID)
	if err != nil && !persistence.IsInstanceNotFound(err) {
		return nil, err
	}

	var backup *models.WorkflowBackup

	if existing != nil {
		if !req.Force {
			return nil, newOperationError(op, req.ContentUID, ErrWorkflowConflict,
				fmt.Sprintf("content already runs template %s since %s",
					existing.TemplateID, existing.AppliedAt.Format(time.RFC3339)))
		}

		if req.BackupExisting {
			backup, err = e.snapshotExisting(ctx, existing)
			if err != nil {
				return nil, err
			}
		}
	}

	assignments := make(map[models.Role][]string, len(req.RoleAssignments))
	for role, users := range req.RoleAssignments {
		assignments[role] = slices.Clone(users)
	}

	now := e.clock.Now().UTC()
	instance := &models.WorkflowInstance{
		ContentUID:      req.ContentUID,
		TemplateID:      template.ID,
		CurrentState:    template.InitialState().ID,
		RoleAssignments: assignments,
		History:         []models.HistoryEntry{},
		Backup:          backup,
		AppliedAt:       now,
		UpdatedAt:       now,
	}

	if existing != nil {
		instance.Version = existing.Version
		err = e.instances.Update(ctx, instance)
	} else {
		err = e.instances.Save(ctx, instance)
	}

	if err != nil {
		return nil, err
	}

	warnings, _ := e.registry.Warnings(template.ID)

	e.record(ctx, audit.Success(models.AuditApplyTemplate, req.ActorID, req.ContentUID, template.ID,
		models.Change("current_state", "", instance.CurrentState)))

	e.publish(ctx, req.ContentUID, events.TemplateApplied{
		BaseEvent:    events.NewBaseEvent(events.TemplateAppliedEvent, req.ContentUID),
		TemplateID:   template.ID,
		InitialState: instance.CurrentState,
		ActorID:      req.ActorID,
		Forced:       req.Force,
		BackupTaken:  backup != nil,
	})

	if existing == nil {
		e.metrics.InstanceTracked(1)
	}

	e.logger.InfoContext(ctx, "Applied workflow template",
		"template_id", template.ID,
		"content_uid", req.ContentUID,
		"initial_state", instance.CurrentState,
		"replaced", existing != nil)

	return &ApplyResult{
		Instance:    instance,
		Warnings:    warnings,
		Replaced:    existing != nil,
		BackupTaken: backup != nil,
	}, nil
}

// snapshotExisting captures the workflow being replaced. The native state
// read happens before any mutation, so a content store failure aborts the
// whole apply rather than leaving a backup without its native half.
func (e *Engine) snapshotExisting(ctx context.Context, existing *models.WorkflowInstance) (*models.WorkflowBackup, error) {
	backup := &models.WorkflowBackup{
		TemplateID:      existing.TemplateID,
		CurrentState:    existing.CurrentState,
		RoleAssignments: existing.RoleAssignments,
		History:         existing.History,
		AppliedAt:       existing.AppliedAt,
		TakenAt:         e.clock.Now().UTC(),
	}

	if e.content != nil {
		nativeCtx, cancel := e.collaboratorContext(ctx)
		defer cancel()

		native, err := e.content.NativeWorkflowState(nativeCtx, existing.ContentUID)
		if err != nil {
			return nil, newOperationError("apply_template", existing.ContentUID, ErrCollaborator,
				fmt.Sprintf("failed to capture native workflow state: %v", err))
		}

		backup.NativeState = native
	}

	return backup, nil
}

// validateAssignments checks that every role the template's states and
// transitions reference has at least one usable user, and that no unknown
// roles slip in.
func validateAssignments(template *models.WorkflowTemplate, assignments map[models.Role][]string) error {
	for role := range assignments {
		if !role.Valid() {
			return fmt.Errorf("unknown role %q in assignments", role)
		}
	}

	var missing []string

	for _, role := range template.ReferencedRoles() {
		if !hasUsers(assignments[role]) {
			missing = append(missing, string(role))
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)

		return fmt.Errorf("missing user assignments for roles: %s", strings.Join(missing, ", "))
	}

	return nil
}

func hasUsers(users []string) bool {
	for _, user := range users {
		if strings.TrimSpace(user) != "" {
			return true
		}
	}

	return false
}
