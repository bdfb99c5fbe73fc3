package models

import "fmt"

// ValidationIssue names one violated or questionable template rule. Rule is a
// stable identifier suitable for programmatic handling; Detail is for humans.
type ValidationIssue struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", i.Rule, i.Detail)
}

// ValidationResult is the outcome of structurally validating a template.
// Errors are fatal: a template with errors is rejected and never registered.
// Warnings are advisory and travel with the template through registration.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// AddError appends a fatal issue and marks the result invalid.
func (r *ValidationResult) AddError(rule, format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationIssue{Rule: rule, Detail: fmt.Sprintf(format, args...)})
}

// AddWarning appends an advisory issue without affecting validity.
func (r *ValidationResult) AddWarning(rule, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationIssue{Rule: rule, Detail: fmt.Sprintf(format, args...)})
}
