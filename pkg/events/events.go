// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every engine event.
const Topic = "tripwire.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowTriggeredEvent EventType = "workflow.triggered"
	WorkflowFinishedEvent  EventType = "workflow.finished"
	WorkflowFailedEvent    EventType = "workflow.failed"

	GeofencesRegisteredEvent EventType = "geofences.registered"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// WorkflowTriggered is published when a trigger fires and an execution is dispatched.
type WorkflowTriggered struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	TriggerID   string            `json:"trigger_id,omitempty"`
	TriggerKind string            `json:"trigger_kind"`
	UserID      string            `json:"user_id"`
	TriggerData map[string]string `json:"trigger_data,omitempty"`
}

func (w WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type WorkflowFinished struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	ActionsRun  []string          `json:"actions_run"`
	Variables   map[string]string `json:"variables,omitempty"`
	Duration    time.Duration     `json:"duration"`
}

func (w WorkflowFinished) GetType() EventType {
	return WorkflowFinishedEvent
}

type WorkflowFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	ActionsRun  []string      `json:"actions_run"`
	Duration    time.Duration `json:"duration"`
}

func (w WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}

// GeofencesRegistered is published after a successful region refresh.
type GeofencesRegistered struct {
	BaseEvent

	Count int `json:"count"`
}

func (g GeofencesRegistered) GetType() EventType {
	return GeofencesRegisteredEvent
}
