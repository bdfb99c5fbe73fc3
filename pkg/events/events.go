// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/stageflow/stageflow/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "stageflow.events"             // Topic for workflow lifecycle events
const AuditTopic = "stageflow.audit"         // Topic for recorded audit entries
const NotificationTopic = "stageflow.notify" // Topic for user-facing notifications

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow lifecycle events.
	TemplateAppliedEvent    EventType = "workflow.template.applied"
	TransitionExecutedEvent EventType = "workflow.transition.executed"
	TemplateRemovedEvent    EventType = "workflow.template.removed"
	FinalStateReachedEvent  EventType = "workflow.final_state.reached"
	WorkflowReminderEvent   EventType = "workflow.reminder"

	// Audit trail events.
	AuditRecordedEvent EventType = "audit.recorded"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	ContentUID string         `json:"content_uid"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TemplateApplied is published after a template is bound to a content entity
// and its instance committed.
type TemplateApplied struct {
	BaseEvent

	TemplateID   string `json:"template_id"`
	InitialState string `json:"initial_state"`
	ActorID      string `json:"actor_id"`
	Forced       bool   `json:"forced,omitempty"`
	BackupTaken  bool   `json:"backup_taken,omitempty"`
}

func (e TemplateApplied) GetType() EventType {
	return TemplateAppliedEvent
}

// TransitionExecuted is published after a transition commits.
type TransitionExecuted struct {
	BaseEvent

	TemplateID   string `json:"template_id"`
	TransitionID string `json:"transition_id"`
	FromState    string `json:"from_state"`
	ToState      string `json:"to_state"`
	ActorID      string `json:"actor_id"`
	Comments     string `json:"comments,omitempty"`
	FinalState   bool   `json:"final_state,omitempty"`
}

func (e TransitionExecuted) GetType() EventType {
	return TransitionExecutedEvent
}

// TemplateRemoved is published after a workflow is detached from a content
// entity, whether or not a backup was restored.
type TemplateRemoved struct {
	BaseEvent

	TemplateID string `json:"template_id"`
	ActorID    string `json:"actor_id"`
	Restored   bool   `json:"restored"`
}

func (e TemplateRemoved) GetType() EventType {
	return TemplateRemovedEvent
}

// FinalStateReached is published alongside TransitionExecuted when the
// destination state is final, so downstream consumers can archive or publish
// without inspecting the template.
type FinalStateReached struct {
	BaseEvent

	TemplateID string `json:"template_id"`
	StateID    string `json:"state_id"`
	ActorID    string `json:"actor_id"`
}

func (e FinalStateReached) GetType() EventType {
	return FinalStateReachedEvent
}

// WorkflowReminder is published when a reminder sweep finds content parked in
// a non-final state past the configured age.
type WorkflowReminder struct {
	BaseEvent

	TemplateID string    `json:"template_id"`
	StateID    string    `json:"state_id"`
	IdleSince  time.Time `json:"idle_since"`
	Recipients []string  `json:"recipients"`
}

func (e WorkflowReminder) GetType() EventType {
	return WorkflowReminderEvent
}

// AuditRecorded carries a committed audit entry onto the bus.
type AuditRecorded struct {
	BaseEvent

	Entry *models.AuditEntry `json:"entry"`
}

func (e AuditRecorded) GetType() EventType {
	return AuditRecordedEvent
}

func NewBaseEvent(eventType EventType, contentUID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		ContentUID: contentUID,
		Metadata:   make(map[string]any),
	}
}
