package models

// Role identifies a participant responsibility within a content workflow.
// The set is closed: templates referencing anything else are rejected at load.
type Role string

const (
	RoleAuthor        Role = "author"
	RolePeerReviewer  Role = "peer_reviewer"
	RoleEditor        Role = "editor"
	RoleSubjectExpert Role = "subject_expert"
	RolePublisher     Role = "publisher"
	RoleAdministrator Role = "administrator"
	RoleViewer        Role = "viewer"
)

// Roles returns every known role in a stable order.
func Roles() []Role {
	return []Role{
		RoleAuthor,
		RolePeerReviewer,
		RoleEditor,
		RoleSubjectExpert,
		RolePublisher,
		RoleAdministrator,
		RoleViewer,
	}
}

// Valid reports whether the role belongs to the closed enum.
func (r Role) Valid() bool {
	switch r {
	case RoleAuthor, RolePeerReviewer, RoleEditor, RoleSubjectExpert,
		RolePublisher, RoleAdministrator, RoleViewer:
		return true
	}

	return false
}

// Action is a capability a role may exercise on content in a given state.
type Action string

const (
	ActionView           Action = "view"
	ActionEdit           Action = "edit"
	ActionDelete         Action = "delete"
	ActionSubmit         Action = "submit"
	ActionReview         Action = "review"
	ActionApprove        Action = "approve"
	ActionPublish        Action = "publish"
	ActionReject         Action = "reject"
	ActionRetract        Action = "retract"
	ActionManageWorkflow Action = "manage_workflow"
	ActionAssignRoles    Action = "assign_roles"
)

// Actions returns every known action in a stable order.
func Actions() []Action {
	return []Action{
		ActionView,
		ActionEdit,
		ActionDelete,
		ActionSubmit,
		ActionReview,
		ActionApprove,
		ActionPublish,
		ActionReject,
		ActionRetract,
		ActionManageWorkflow,
		ActionAssignRoles,
	}
}

// Valid reports whether the action belongs to the closed enum.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionEdit, ActionDelete, ActionSubmit, ActionReview,
		ActionApprove, ActionPublish, ActionReject, ActionRetract,
		ActionManageWorkflow, ActionAssignRoles:
		return true
	}

	return false
}

// Privileged reports whether the action grants control over the workflow
// itself rather than over content. Broad grants of privileged actions are
// flagged as validation warnings.
func (a Action) Privileged() bool {
	return a == ActionManageWorkflow || a == ActionAssignRoles
}
