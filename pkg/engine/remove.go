package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stageflow/stageflow/pkg/audit"
	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/otelhelper"
)

// RemoveRequest detaches the workflow from a piece of content. With
// RestoreBackup set and a backup present, the previously replaced workflow is
// reinstated instead of the content becoming untracked.
type RemoveRequest struct {
	ContentUID    string
	ActorID       string
	RestoreBackup bool
}

// RemoveResult reports what was removed. Instance is non-nil only when a
// backup was restored; it then holds the reinstated workflow.
type RemoveResult struct {
	RemovedTemplateID string
	Restored          bool
	Instance          *models.WorkflowInstance
}

// RemoveTemplate takes content out of its current workflow. Without a
// restore, the instance is deleted and the content's own record in the
// content system is left untouched. With a restore, the content system's
// native state is written back first, so a content store failure aborts the
// removal with the current workflow intact. Exactly one audit entry is
// recorded, success or failure.
func (e *Engine) RemoveTemplate(ctx context.Context, req RemoveRequest) (result *RemoveResult, err error) {
	const op = "remove_template"

	start := e.clock.Now()
	templateID := ""

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.remove_template",
		attribute.String(otelhelper.OperationKey, op),
		attribute.String(otelhelper.ContentUIDKey, req.ContentUID),
		attribute.String(otelhelper.ActorIDKey, req.ActorID),
	)
	defer span.End()

	defer func() {
		e.metrics.ObserveOperation(op, err == nil, e.clock.Since(start))

		if err != nil {
			otelhelper.SetError(span, err)
			e.record(ctx, audit.Failure(models.AuditRemoveTemplate, req.ActorID, req.ContentUID, templateID, err))
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
	backup := instance.Backup

	if req.RestoreBackup && backup != nil {
		restored, restoreErr := e.restoreBackup(ctx, instance, backup)
		if restoreErr != nil {
			err = restoreErr

			return nil, err
		}

		e.record(ctx, audit.Success(models.AuditRemoveTemplate, req.ActorID, req.ContentUID, templateID,
			models.Change("template_id", templateID, restored.TemplateID),
			models.Change("current_state", instance.CurrentState, restored.CurrentState)))

		e.publish(ctx, req.ContentUID, events.TemplateRemoved{
			BaseEvent:  events.NewBaseEvent(events.TemplateRemovedEvent, req.ContentUID),
			TemplateID: templateID,
			ActorID:    req.ActorID,
			Restored:   true,
		})

		e.logger.InfoContext(ctx, "Removed workflow template and restored backup",
			"content_uid", req.ContentUID,
			"removed_template_id", templateID,
			"restored_template_id", restored.TemplateID)

		return &RemoveResult{
			RemovedTemplateID: templateID,
			Restored:          true,
			Instance:          restored,
		}, nil
	}

	err = e.instances.Delete(ctx, req.ContentUID)
	if err != nil {
		return nil, err
	}

	e.record(ctx, audit.Success(models.AuditRemoveTemplate, req.ActorID, req.ContentUID, templateID,
		models.Change("current_state", instance.CurrentState, "")))

	e.publish(ctx, req.ContentUID, events.TemplateRemoved{
		BaseEvent:  events.NewBaseEvent(events.TemplateRemovedEvent, req.ContentUID),
		TemplateID: templateID,
		ActorID:    req.ActorID,
		Restored:   false,
	})

	e.metrics.InstanceTracked(-1)

	e.logger.InfoContext(ctx, "Removed workflow template",
		"content_uid", req.ContentUID,
		"template_id", templateID)

	return &RemoveResult{RemovedTemplateID: templateID}, nil
}

// restoreBackup writes the backup's native state back to the content store,
// then swaps the stored instance for one rebuilt from the backup. The swap
// reuses the live instance's version, so there is never a window where the
// content is untracked.
func (e *Engine) restoreBackup(ctx context.Context, instance *models.WorkflowInstance, backup *models.WorkflowBackup) (*models.WorkflowInstance, error) {
	const op = "remove_template"

	if backup.NativeState != nil {
		if e.content == nil {
			return nil, newOperationError(op, instance.ContentUID, ErrCollaborator,
				"backup carries native workflow state but no content store is configured")
		}

		restoreCtx, cancel := e.collaboratorContext(ctx)
		defer cancel()

		err := e.content.SetNativeWorkflowState(restoreCtx, instance.ContentUID, backup.NativeState)
		if err != nil {
			return nil, newOperationError(op, instance.ContentUID, ErrCollaborator,
				fmt.Sprintf("failed to restore native workflow state: %v", err))
		}
	}

	restored := &models.WorkflowInstance{
		ContentUID:      instance.ContentUID,
		TemplateID:      backup.TemplateID,
		CurrentState:    backup.CurrentState,
		RoleAssignments: backup.RoleAssignments,
		History:         backup.History,
		AppliedAt:       backup.AppliedAt,
		UpdatedAt:       e.clock.Now().UTC(),
		Version:         instance.Version,
	}

	err := e.instances.Update(ctx, restored)
	if err != nil {
		return nil, err
	}

	return restored, nil
}
