// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/stageflow/stageflow/pkg/engine"
	"github.com/stageflow/stageflow/pkg/models"
)

// ApplyTemplateRequest represents the request body for attaching a workflow
// template to a piece of content.
type ApplyTemplateRequest struct {
	TemplateID      string              `json:"template_id"      validate:"required"`
	RoleAssignments map[string][]string `json:"role_assignments" validate:"required"`
	Force           bool                `json:"force"`
	BackupExisting  bool                `json:"backup_existing"`
}

// Assignments converts the wire-level role map into model roles. Unknown role
// names pass through untouched; the engine rejects them with the offending
// name in the error.
func (r ApplyTemplateRequest) Assignments() map[models.Role][]string {
	assignments := make(map[models.Role][]string, len(r.RoleAssignments))
	for role, users := range r.RoleAssignments {
		assignments[models.Role(role)] = users
	}

	return assignments
}

// ExecuteTransitionRequest represents the request body for moving content
// along one of its template's transitions.
type ExecuteTransitionRequest struct {
	TransitionID string `json:"transition_id" validate:"required"`
	Comments     string `json:"comments"`
}

// ApplyTemplateResponse reports the freshly created instance together with
// any non-fatal validation warnings the template carries.
type ApplyTemplateResponse struct {
	Instance    *models.WorkflowInstance `json:"instance"`
	Warnings    []models.ValidationIssue `json:"warnings,omitempty"`
	Replaced    bool                     `json:"replaced"`
	BackupTaken bool                     `json:"backup_taken"`
}

// ExecuteTransitionResponse reports the committed move together with the
// follow-up transitions the caller's role can take from the new state.
type ExecuteTransitionResponse struct {
	Instance             *models.WorkflowInstance     `json:"instance"`
	FromState            string                       `json:"from_state"`
	AvailableTransitions []*models.WorkflowTransition `json:"available_transitions"`
	FinalState           bool                         `json:"final_state"`
}

// RemoveTemplateResponse reports a removal that restored a backed-up
// workflow. Plain removals answer with no body.
type RemoveTemplateResponse struct {
	RemovedTemplateID string                   `json:"removed_template_id"`
	Restored          bool                     `json:"restored"`
	Instance          *models.WorkflowInstance `json:"instance,omitempty"`
}

func applyResponse(result *engine.ApplyResult) ApplyTemplateResponse {
	return ApplyTemplateResponse{
		Instance:    result.Instance,
		Warnings:    result.Warnings,
		Replaced:    result.Replaced,
		BackupTaken: result.BackupTaken,
	}
}

func transitionResponse(result *engine.TransitionResult) ExecuteTransitionResponse {
	return ExecuteTransitionResponse{
		Instance:             result.Instance,
		FromState:            result.FromState,
		AvailableTransitions: result.AvailableTransitions,
		FinalState:           result.FinalState,
	}
}

func removeResponse(result *engine.RemoveResult) RemoveTemplateResponse {
	return RemoveTemplateResponse{
		RemovedTemplateID: result.RemovedTemplateID,
		Restored:          result.Restored,
		Instance:          result.Instance,
	}
}
