// Package permissions resolves what a role can do with content in a given
// workflow state. All lookups are pure reads over the immutable template, so
// they are safe to call concurrently without locking.
package permissions

import (
	"slices"

	"github.com/stageflow/stageflow/pkg/models"
)

// AvailableActions returns the actions a role may perform while content sits
// in the given state. State-level permissions take precedence for the role;
// otherwise the template's default permissions apply. Unknown states and roles
// resolve to no actions rather than an error.
func AvailableActions(template *models.WorkflowTemplate, stateID string, role models.Role) []models.Action {
	state := template.State(stateID)
	if state == nil {
		return nil
	}

	for _, permission := range state.Permissions {
		if permission.Role == role {
			return slices.Clone(permission.Actions)
		}
	}

	return slices.Clone(template.DefaultPermissions[role])
}

// HasAction reports whether the role holds the given action in the state.
func HasAction(template *models.WorkflowTemplate, stateID string, role models.Role, action models.Action) bool {
	return slices.Contains(AvailableActions(template, stateID, role), action)
}

// TransitionsFrom returns every transition leaving the given state, in
// template order, regardless of who could execute it.
func TransitionsFrom(template *models.WorkflowTemplate, stateID string) []*models.WorkflowTransition {
	var transitions []*models.WorkflowTransition

	for _, transition := range template.Transitions {
		if transition.FromState == stateID {
			transitions = append(transitions, transition)
		}
	}

	return transitions
}

// AllowedTransitions returns the transitions out of the state that the role
// may legally execute: either the transition names it as the required role, or
// the role holds manage_workflow in the current state and may override.
func AllowedTransitions(template *models.WorkflowTemplate, stateID string, role models.Role) []*models.WorkflowTransition {
	manager := HasAction(template, stateID, role, models.ActionManageWorkflow)

	var allowed []*models.WorkflowTransition

	for _, transition := range TransitionsFrom(template, stateID) {
		if transition.RequiredRole == role || manager {
			allowed = append(allowed, transition)
		}
	}

	return allowed
}

// CanExecute reports whether the role may execute the named transition from
// the state it leaves, applying the same manage_workflow override as
// AllowedTransitions.
func CanExecute(template *models.WorkflowTemplate, transition *models.WorkflowTransition, role models.Role) bool {
	if transition.RequiredRole == role {
		return true
	}

	return HasAction(template, transition.FromState, role, models.ActionManageWorkflow)
}
