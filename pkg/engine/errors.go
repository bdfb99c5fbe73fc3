package engine

import (
	"errors"
	"fmt"
)

// Standard engine error types surfaced to callers of state-changing
// operations. Template and instance lookup failures reuse the registry and
// persistence sentinels.
var (
	// ErrTransitionNotFound indicates the instance's template has no transition
	// with the requested ID.
	ErrTransitionNotFound = errors.New("transition not found")

	// ErrInvalidTransition indicates the transition exists but does not leave
	// the instance's current state.
	ErrInvalidTransition = errors.New("transition not valid from current state")

	// ErrPermissionDenied indicates the acting role may not execute the
	// transition.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConditionNotMet indicates a transition precondition failed.
	ErrConditionNotMet = errors.New("transition condition not met")

	// ErrRoleAssignmentsIncomplete indicates apply-time role assignments are
	// missing a role the template references.
	ErrRoleAssignmentsIncomplete = errors.New("role assignments incomplete")

	// ErrWorkflowConflict indicates the content already has a workflow and the
	// apply was not forced.
	ErrWorkflowConflict = errors.New("workflow already applied")

	// ErrCollaborator indicates a collaborator call failed before the operation
	// could commit.
	ErrCollaborator = errors.New("collaborator failure")
)

// OperationError wraps engine operation failures with enough context for the
// caller to correct the request.
type OperationError struct {
	Op         string // Operation being performed (e.g., "apply_template")
	ContentUID string // Content UID if applicable
	Err        error  // Underlying error
	Detail     string // Human-readable correction hint
}

func (e *OperationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed for content %s: %s (%v)", e.Op, e.ContentUID, e.Detail, e.Err)
	}

	return fmt.Sprintf("%s failed for content %s: %v", e.Op, e.ContentUID, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for operation errors.
func (e *OperationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newOperationError(op, contentUID string, err error, detail string) *OperationError {
	return &OperationError{
		Op:         op,
		ContentUID: contentUID,
		Err:        err,
		Detail:     detail,
	}
}

// IsTransitionNotFound checks if an error indicates an unknown transition ID.
func IsTransitionNotFound(err error) bool {
	return errors.Is(err, ErrTransitionNotFound)
}

// IsInvalidTransition checks if an error indicates a from-state mismatch.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsPermissionDenied checks if an error indicates the acting role was
// rejected.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsConditionNotMet checks if an error indicates a failed transition
// precondition.
func IsConditionNotMet(err error) bool {
	return errors.Is(err, ErrConditionNotMet)
}

// IsRoleAssignmentsIncomplete checks if an error indicates missing role
// assignments at apply time.
func IsRoleAssignmentsIncomplete(err error) bool {
	return errors.Is(err, ErrRoleAssignmentsIncomplete)
}

// IsWorkflowConflict checks if an error indicates an unforced re-apply.
func IsWorkflowConflict(err error) bool {
	return errors.Is(err, ErrWorkflowConflict)
}

// IsCollaboratorFailure checks if an error indicates a collaborator call
// failed.
func IsCollaboratorFailure(err error) bool {
	return errors.Is(err, ErrCollaborator)
}
