package models

import (
	"maps"
	"slices"
	"time"
)

// WorkflowInstance is one content entity's live position within an applied
// template's state graph. It is the only mutable record in the engine; all
// access goes through the instance store, which hands out deep copies, and the
// engine serializes mutations per content UID.
type WorkflowInstance struct {
	ContentUID      string            `json:"content_uid" validate:"required"`
	TemplateID      string            `json:"template_id" validate:"required"`
	CurrentState    string            `json:"current_state" validate:"required"`
	RoleAssignments map[Role][]string `json:"role_assignments"`
	History         []HistoryEntry    `json:"history"`
	Backup          *WorkflowBackup   `json:"backup,omitempty"`
	AppliedAt       time.Time         `json:"applied_at"`
	UpdatedAt       time.Time         `json:"updated_at"`

	// Version counts committed mutations. Stores shared between processes use
	// it for compare-and-swap writes; a stale version fails with a conflict.
	Version int64 `json:"version"`
}

// HistoryEntry records one executed transition. History is append-only.
type HistoryEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	FromState    string    `json:"from_state"`
	ToState      string    `json:"to_state"`
	TransitionID string    `json:"transition_id"`
	UserID       string    `json:"user_id"`
	Comments     string    `json:"comments,omitempty"`
}

// WorkflowBackup snapshots the workflow that an instance replaced, taken when
// a template is force-applied over an existing one. Restoring it undoes the
// apply: the prior instance shape and the content store's native workflow
// state both come back.
type WorkflowBackup struct {
	TemplateID      string               `json:"template_id"`
	CurrentState    string               `json:"current_state"`
	RoleAssignments map[Role][]string    `json:"role_assignments,omitempty"`
	History         []HistoryEntry       `json:"history,omitempty"`
	NativeState     *NativeWorkflowState `json:"native_state,omitempty"`
	AppliedAt       time.Time            `json:"applied_at"`
	TakenAt         time.Time            `json:"taken_at"`
}

// NativeWorkflowState is the external content system's own workflow snapshot,
// captured through the content store collaborator for backup and restore.
type NativeWorkflowState struct {
	ReviewState string         `json:"review_state"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// AssignedUsers returns the users holding the given role, or nil.
func (i *WorkflowInstance) AssignedUsers(role Role) []string {
	return i.RoleAssignments[role]
}

// Clone returns a deep copy. Stores return clones so callers can never alias
// the stored record.
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	if i == nil {
		return nil
	}

	clone := *i
	clone.RoleAssignments = cloneAssignments(i.RoleAssignments)
	clone.History = slices.Clone(i.History)
	clone.Backup = i.Backup.clone()

	return &clone
}

func (b *WorkflowBackup) clone() *WorkflowBackup {
	if b == nil {
		return nil
	}

	clone := *b
	clone.RoleAssignments = cloneAssignments(b.RoleAssignments)
	clone.History = slices.Clone(b.History)
	clone.NativeState = b.NativeState.clone()

	return &clone
}

func (n *NativeWorkflowState) clone() *NativeWorkflowState {
	if n == nil {
		return nil
	}

	clone := *n
	clone.Extra = maps.Clone(n.Extra)

	return &clone
}

func cloneAssignments(assignments map[Role][]string) map[Role][]string {
	if assignments == nil {
		return nil
	}

	clone := make(map[Role][]string, len(assignments))
	for role, users := range assignments {
		clone[role] = slices.Clone(users)
	}

	return clone
}
