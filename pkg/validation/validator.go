// Package validation implements structural validation for workflow templates:
// field shape, closed-enum membership, and state-graph invariants. Validation
// is pure and deterministic; it runs once at template load time, and a
// template with errors is never registered.
package validation

import (
	"regexp"

	"github.com/stageflow/stageflow/pkg/models"
)

// Rule identifiers reported in validation issues. Stable: callers and tests
// match on them.
const (
	RuleTemplateID          = "template_id"
	RuleTemplateName        = "template_name"
	RuleCategory            = "category"
	RuleVersion             = "version"
	RuleStateCount          = "state_count"
	RuleTransitionCount     = "transition_count"
	RuleStateID             = "state_id"
	RuleStateType           = "state_type"
	RuleDuplicateState      = "duplicate_state_id"
	RuleDuplicateTransition = "duplicate_transition_id"
	RuleRole                = "role"
	RuleAction              = "action"
	RuleInitialState        = "initial_state"
	RuleFinalState          = "final_state"
	RuleUnknownState        = "unknown_state"
	RuleFinalOutgoing       = "final_state_outgoing"
	RuleUnreachableState    = "unreachable_state"
	RuleDeadEndState        = "dead_end_state"
	RulePrivilegedGrant     = "privileged_grant"
)

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Validate runs the full invariant list against the template and reports
// every violated rule, not just the first. Complexity is O(states +
// transitions).
func Validate(template *models.WorkflowTemplate) models.ValidationResult {
	result := models.ValidationResult{Valid: true}

	validateFields(template, &result)
	validateStates(template, &result)
	validateTransitions(template, &result)
	validateGraph(template, &result)
	warnPrivilegedGrants(template, &result)

	return result
}

func validateFields(template *models.WorkflowTemplate, result *models.ValidationResult) {
	if len(template.ID) < 2 {
		result.AddError(RuleTemplateID, "template id %q must be at least 2 characters", template.ID)
	}

	if len(template.Name) < 3 {
		result.AddError(RuleTemplateName, "template name %q must be at least 3 characters", template.Name)
	}

	if !template.Category.Valid() {
		result.AddError(RuleCategory, "unknown template category %q", template.Category)
	}

	if !semverPattern.MatchString(template.Version) {
		result.AddError(RuleVersion, "version %q is not a semantic version (x.y.z)", template.Version)
	}

	if len(template.States) < 2 {
		result.AddError(RuleStateCount, "template has %d states, need at least 2", len(template.States))
	}

	if len(template.Transitions) < 1 {
		result.AddError(RuleTransitionCount, "template has no transitions, need at least 1")
	}

	for role, actions := range template.DefaultPermissions {
		if !role.Valid() {
			result.AddError(RuleRole, "default permissions reference unknown role %q", role)
		}

		for _, action := range actions {
			if !action.Valid() {
				result.AddError(RuleAction, "default permissions for role %q reference unknown action %q", role, action)
			}
		}
	}
}

func validateStates(template *models.WorkflowTemplate, result *models.ValidationResult) {
	seen := make(map[string]bool, len(template.States))
	initials := 0
	finals := 0

	for _, state := range template.States {
		if len(state.ID) < 2 {
			result.AddError(RuleStateID, "state id %q must be at least 2 characters", state.ID)
		}

		if seen[state.ID] {
			result.AddError(RuleDuplicateState, "state id %q appears more than once", state.ID)
		}

		seen[state.ID] = true

		if !state.Type.Valid() {
			result.AddError(RuleStateType, "state %q has unknown state type %q", state.ID, state.Type)
		}

		if state.Initial {
			initials++
		}

		if state.Final {
			finals++
		}

		for _, perm := range state.Permissions {
			if !perm.Role.Valid() {
				result.AddError(RuleRole, "state %q grants permissions to unknown role %q", state.ID, perm.Role)
			}

			for _, action := range perm.Actions {
				if !action.Valid() {
					result.AddError(RuleAction, "state %q grants unknown action %q to role %q", state.ID, action, perm.Role)
				}
			}
		}
	}

	if initials != 1 {
		result.AddError(RuleInitialState, "template must have exactly one initial state, found %d", initials)
	}

	if finals < 1 {
		result.AddError(RuleFinalState, "template must have at least one final state")
	}
}

func validateTransitions(template *models.WorkflowTemplate, result *models.ValidationResult) {
	states := stateIndex(template)
	seen := make(map[string]bool, len(template.Transitions))

	for _, transition := range template.Transitions {
		if transition.ID == "" {
			result.AddError(RuleDuplicateTransition, "transition with empty id")
		} else if seen[transition.ID] {
			result.AddError(RuleDuplicateTransition, "transition id %q appears more than once", transition.ID)
		}

		seen[transition.ID] = true

		if !transition.RequiredRole.Valid() {
			result.AddError(RuleRole, "transition %q requires unknown role %q", transition.ID, transition.RequiredRole)
		}

		from, fromOK := states[transition.FromState]
		if !fromOK {
			result.AddError(RuleUnknownState, "transition %q references unknown from_state %q", transition.ID, transition.FromState)
		}

		if _, ok := states[transition.ToState]; !ok {
			result.AddError(RuleUnknownState, "transition %q references unknown to_state %q", transition.ID, transition.ToState)
		}

		if fromOK && from.Final {
			result.AddError(RuleFinalOutgoing, "transition %q leaves final state %q", transition.ID, transition.FromState)
		}
	}
}

// validateGraph checks forward reachability from the initial state and that
// every state can still reach a final state. Both walks only make sense on a
// template whose basic shape held up, so they are skipped when the initial or
// final state invariants already failed.
func validateGraph(template *models.WorkflowTemplate, result *models.ValidationResult) {
	states := stateIndex(template)
	finals := template.FinalStates()

	initial := template.InitialState()

	initials := 0
	for _, state := range template.States {
		if state.Initial {
			initials++
		}
	}

	if initials != 1 {
		initial = nil
	}

	forward := make(map[string][]string, len(states))
	reverse := make(map[string][]string, len(states))

	for _, transition := range template.Transitions {
		if _, ok := states[transition.FromState]; !ok {
			continue
		}

		if _, ok := states[transition.ToState]; !ok {
			continue
		}

		forward[transition.FromState] = append(forward[transition.FromState], transition.ToState)
		reverse[transition.ToState] = append(reverse[transition.ToState], transition.FromState)
	}

	if initial != nil {
		reachable := walk(forward, []string{initial.ID})

		for _, state := range template.States {
			if !reachable[state.ID] {
				result.AddError(RuleUnreachableState, "state %q is not reachable from initial state %q", state.ID, initial.ID)
			}
		}
	}

	if len(finals) > 0 {
		finalIDs := make([]string, 0, len(finals))
		for _, state := range finals {
			finalIDs = append(finalIDs, state.ID)
		}

		canFinish := walk(reverse, finalIDs)

		for _, state := range template.States {
			if !canFinish[state.ID] {
				result.AddError(RuleDeadEndState, "state %q has no path to any final state", state.ID)
			}
		}
	}
}

// warnPrivilegedGrants flags templates handing out workflow-control actions
// broadly: privileged actions in the template defaults, or state-level grants
// to roles other than administrator.
func warnPrivilegedGrants(template *models.WorkflowTemplate, result *models.ValidationResult) {
	for role, actions := range template.DefaultPermissions {
		for _, action := range actions {
			if action.Privileged() {
				result.AddWarning(RulePrivilegedGrant, "default permissions grant privileged action %q to role %q", action, role)
			}
		}
	}

	for _, state := range template.States {
		for _, perm := range state.Permissions {
			if perm.Role == models.RoleAdministrator {
				continue
			}

			for _, action := range perm.Actions {
				if action.Privileged() {
					result.AddWarning(RulePrivilegedGrant, "state %q grants privileged action %q to role %q", state.ID, action, perm.Role)
				}
			}
		}
	}
}

func stateIndex(template *models.WorkflowTemplate) map[string]*models.WorkflowState {
	index := make(map[string]*models.WorkflowState, len(template.States))
	for _, state := range template.States {
		index[state.ID] = state
	}

	return index
}

// walk runs a breadth-first traversal over the adjacency list starting from
// the given ids and returns the visited set.
func walk(edges map[string][]string, start []string) map[string]bool {
	visited := make(map[string]bool, len(edges))
	queue := append([]string(nil), start...)

	for _, id := range start {
		visited[id] = true
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range edges[current] {
			if visited[next] {
				continue
			}

			visited[next] = true
			queue = append(queue, next)
		}
	}

	return visited
}
