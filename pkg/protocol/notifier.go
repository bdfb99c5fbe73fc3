package protocol

import (
	"context"
	"time"
)

// NotificationType distinguishes why users are being notified.
type NotificationType string

const (
	// NotificationTransition tells the users of a destination state that
	// content just arrived there.
	NotificationTransition NotificationType = "transition"

	// NotificationReminder nudges the users of a state about content that
	// has been sitting there too long.
	NotificationReminder NotificationType = "reminder"
)

// Notification describes a committed workflow event worth telling users about.
type Notification struct {
	Type         NotificationType `json:"type"`
	ContentUID   string           `json:"content_uid"`
	TemplateID   string           `json:"template_id"`
	TransitionID string           `json:"transition_id,omitempty"`
	FromState    string           `json:"from_state,omitempty"`
	ToState      string           `json:"to_state"`
	ActorID      string           `json:"actor_id,omitempty"`
	Comments     string           `json:"comments,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// Notifier delivers notifications to users. Delivery is best effort: the
// engine calls it after the state change is committed and ignores failures
// beyond logging them.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, notification Notification) error
}
