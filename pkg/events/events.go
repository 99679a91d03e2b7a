// Package events defines event types and structures for workflow and feature
// lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "archon.events" // Topic for workflow and feature lifecycle events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow instance lifecycle events.
	WorkflowStartedEvent      EventType = "workflow.started"
	WorkflowTransitionedEvent EventType = "workflow.transitioned"
	WorkflowCancelledEvent    EventType = "workflow.cancelled"
	WorkflowCompletedEvent    EventType = "workflow.completed"

	// Feature execution events.
	FeatureExecutedEvent EventType = "feature.executed"
	FeatureFailedEvent   EventType = "feature.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	Tenant     string         `json:"tenant,omitempty"`
	UserEmail  string         `json:"user_email,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	NodeUUID   string         `json:"node_uuid,omitempty"`
	InstanceID string         `json:"instance_id,omitempty"`
}

type WorkflowStarted struct {
	BaseEvent

	DefinitionUUID string `json:"definition_uuid"`
	InitialState   string `json:"initial_state"`
}

func (w WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type WorkflowTransitioned struct {
	BaseEvent

	Signal    string `json:"signal"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Final     bool   `json:"final"`
}

func (w WorkflowTransitioned) GetType() EventType {
	return WorkflowTransitionedEvent
}

type WorkflowCancelled struct {
	BaseEvent

	FromState string `json:"from_state"`
}

func (w WorkflowCancelled) GetType() EventType {
	return WorkflowCancelledEvent
}

type WorkflowCompleted struct {
	BaseEvent

	FinalState string `json:"final_state"`
}

func (w WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type FeatureExecuted struct {
	BaseEvent

	FeatureID  string        `json:"feature_id"`
	Route      string        `json:"route"`
	DurationMs int64         `json:"duration_ms"`
	NodeUUIDs  []string      `json:"node_uuids,omitempty"`
	Duration   time.Duration `json:"-"`
}

func (f FeatureExecuted) GetType() EventType {
	return FeatureExecutedEvent
}

type FeatureFailed struct {
	BaseEvent

	FeatureID string `json:"feature_id"`
	Route     string `json:"route"`
	Error     string `json:"error"`
}

func (f FeatureFailed) GetType() EventType {
	return FeatureFailedEvent
}

func NewBaseEvent(eventType EventType, nodeUUID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		NodeUUID:  nodeUUID,
		Metadata:  make(map[string]any),
	}
}
