// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrInvalidRole      = errors.New("invalid role")
	ErrEmptyTemplateID  = errors.New("template ID cannot be empty")
	ErrEmptyContentUID  = errors.New("content UID cannot be empty")
	ErrEmptyActorID     = errors.New("actor ID cannot be empty")
	ErrEmptyTransition  = errors.New("transition ID cannot be empty")

	// Audit query errors (400 Bad Request).
	ErrAmbiguousAuditQuery = errors.New("audit queries filter by content UID or by user ID, not both")
	ErrEmptyAuditQuery     = errors.New("audit queries need a content UID or a user ID")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrEmptyTemplateID) ||
		errors.Is(err, ErrEmptyContentUID) ||
		errors.Is(err, ErrEmptyActorID) ||
		errors.Is(err, ErrEmptyTransition) ||
		errors.Is(err, ErrAmbiguousAuditQuery) ||
		errors.Is(err, ErrEmptyAuditQuery)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
