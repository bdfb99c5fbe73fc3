// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrInstanceNotFound indicates no workflow instance is tracked for the content UID.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrInstanceExists indicates the content UID already has a tracked instance.
	ErrInstanceExists = errors.New("workflow instance already exists")

	// ErrVersionConflict indicates an optimistic concurrency check failed on update.
	ErrVersionConflict = errors.New("workflow instance version conflict")
)

// InstanceError wraps instance-related errors with additional context.
type InstanceError struct {
	Op         string // Operation being performed (e.g., "GetByContentUID", "Save", "Update")
	ContentUID string // Content UID if applicable
	Err        error  // Underlying error
	Message    string // Additional context message
}

func (e *InstanceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for content %s: %s (%v)", e.Op, e.ContentUID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for content %s: %v", e.Op, e.ContentUID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for instance errors.
func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInstanceError creates a new instance error with context.
func NewInstanceError(op, contentUID string, err error) *InstanceError {
	return &InstanceError{
		Op:         op,
		ContentUID: contentUID,
		Err:        err,
	}
}

// IsInstanceNotFound checks if an error indicates a workflow instance was not found.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsInstanceExists checks if an error indicates a duplicate workflow instance.
func IsInstanceExists(err error) bool {
	return errors.Is(err, ErrInstanceExists)
}

// IsVersionConflict checks if an error indicates an optimistic concurrency failure.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
