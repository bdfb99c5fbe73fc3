package models

import (
	"slices"
	"time"
)

// AuditOperation names a state-changing engine operation in the audit trail.
type AuditOperation string

const (
	AuditApplyTemplate     AuditOperation = "apply_template"
	AuditExecuteTransition AuditOperation = "execute_transition"
	AuditRemoveTemplate    AuditOperation = "remove_template"
)

// AuditEntry is an immutable record of one state-changing operation, written
// whether the operation succeeded or failed. Exactly one entry is produced per
// operation.
type AuditEntry struct {
	ID         string             `json:"id"`
	Timestamp  time.Time          `json:"timestamp"`
	Operation  AuditOperation     `json:"operation"`
	UserID     string             `json:"user_id"`
	ContentUID string             `json:"content_uid"`
	TemplateID string             `json:"template_id,omitempty"`
	Success    bool               `json:"success"`
	Changes    []ChangeDescriptor `json:"changes,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e *AuditEntry) Clone() *AuditEntry {
	if e == nil {
		return nil
	}

	clone := *e
	clone.Changes = slices.Clone(e.Changes)

	return &clone
}

// ChangeDescriptor describes one field-level change made by an operation.
type ChangeDescriptor struct {
	Field string `json:"field"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

// Change builds a single field change descriptor.
func Change(field, from, to string) ChangeDescriptor {
	return ChangeDescriptor{Field: field, From: from, To: to}
}
