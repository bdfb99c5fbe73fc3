package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(TransitionExecutedEvent, "content-123")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, TransitionExecutedEvent, event.Type)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, "content-123", event.ContentUID)
	assert.NotNil(t, event.Metadata)
}

func TestEventTypes(t *testing.T) {
	assert.Equal(t, TemplateAppliedEvent, TemplateApplied{}.GetType())
	assert.Equal(t, TransitionExecutedEvent, TransitionExecuted{}.GetType())
	assert.Equal(t, TemplateRemovedEvent, TemplateRemoved{}.GetType())
	assert.Equal(t, FinalStateReachedEvent, FinalStateReached{}.GetType())
	assert.Equal(t, AuditRecordedEvent, AuditRecorded{}.GetType())
}

func TestTransitionExecuted_JSONSerialization(t *testing.T) {
	original := &TransitionExecuted{
		BaseEvent:    NewBaseEvent(TransitionExecutedEvent, "content-123"),
		TemplateID:   "simple_review",
		TransitionID: "approve_content",
		FromState:    "review",
		ToState:      "published",
		ActorID:      "editor-1",
		Comments:     "looks good",
		FinalState:   true,
	}

	jsonData, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"type":"workflow.transition.executed"`)
	assert.Contains(t, string(jsonData), `"transition_id":"approve_content"`)
	assert.Contains(t, string(jsonData), `"content_uid":"content-123"`)

	var deserialized TransitionExecuted

	err = json.Unmarshal(jsonData, &deserialized)
	require.NoError(t, err)

	assert.Equal(t, original.Type, deserialized.Type)
	assert.Equal(t, original.TransitionID, deserialized.TransitionID)
	assert.Equal(t, original.FromState, deserialized.FromState)
	assert.Equal(t, original.ToState, deserialized.ToState)
	assert.True(t, deserialized.FinalState)
}
