package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stageflow/stageflow/pkg/models"
)

// Standard registry error types that callers match with errors.Is.
var (
	// ErrTemplateNotFound indicates no template is registered under the given identifier.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateInvalid indicates a template document failed validation and was rejected.
	ErrTemplateInvalid = errors.New("template invalid")

	// ErrTemplateExists indicates a template with the same identifier is already registered.
	ErrTemplateExists = errors.New("template already registered")

	// ErrRegistryFrozen indicates a registration attempt after the registry was frozen.
	ErrRegistryFrozen = errors.New("registry is frozen")
)

// TemplateError wraps template registration and lookup errors with context.
type TemplateError struct {
	Op         string                   // Operation being performed (e.g., "Register", "Get")
	TemplateID string                   // Template ID if known
	Err        error                    // Underlying error
	Issues     []models.ValidationIssue // Validation issues when Err is ErrTemplateInvalid
}

func (e *TemplateError) Error() string {
	msg := fmt.Sprintf("%s operation failed for template %s: %v", e.Op, e.TemplateID, e.Err)
	if len(e.Issues) == 0 {
		return msg
	}

	details := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		details = append(details, issue.String())
	}

	return msg + ": " + strings.Join(details, "; ")
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for template errors.
func (e *TemplateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTemplateError creates a new template error with context.
func NewTemplateError(op, templateID string, err error) *TemplateError {
	return &TemplateError{
		Op:         op,
		TemplateID: templateID,
		Err:        err,
	}
}

// IsTemplateNotFound checks if an error indicates a template was not found.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsTemplateInvalid checks if an error indicates a template failed validation.
func IsTemplateInvalid(err error) bool {
	return errors.Is(err, ErrTemplateInvalid)
}

// IsTemplateExists checks if an error indicates a duplicate registration.
func IsTemplateExists(err error) bool {
	return errors.Is(err, ErrTemplateExists)
}

// IssuesOf extracts the validation issues carried by a template error, if any.
func IssuesOf(err error) []models.ValidationIssue {
	var templateErr *TemplateError
	if errors.As(err, &templateErr) {
		return templateErr.Issues
	}

	return nil
}
