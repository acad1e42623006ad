package models

import (
	"maps"
	"time"
)

// ExecutionContext is the per-run variable bag threaded through a workflow's actions.
type ExecutionContext struct {
	ID          string            `json:"id"`
	WorkflowID  string            `json:"workflow_id"`
	UserID      string            `json:"user_id"`
	TriggerID   string            `json:"trigger_id,omitempty"`
	TriggerKind TriggerKind       `json:"trigger_kind"`
	TriggerData map[string]string `json:"trigger_data,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
}

// NewExecutionContext seeds variables from the workflow definition, then the trigger payload.
func NewExecutionContext(id string, workflow *Workflow, userID string, kind TriggerKind, triggerData map[string]string) *ExecutionContext {
	variables := make(map[string]string, len(workflow.Variables)+len(triggerData))
	maps.Copy(variables, workflow.Variables)
	maps.Copy(variables, triggerData)

	data := make(map[string]string, len(triggerData))
	maps.Copy(data, triggerData)

	return &ExecutionContext{
		ID:          id,
		WorkflowID:  workflow.ID,
		UserID:      userID,
		TriggerKind: kind,
		TriggerData: data,
		Variables:   variables,
		StartedAt:   time.Now(),
	}
}

// Snapshot returns a copy of the current variables.
func (c *ExecutionContext) Snapshot() map[string]string {
	return maps.Clone(c.Variables)
}

// ActionOutcome records what happened to one action in a pipeline run.
type ActionOutcome struct {
	ActionID string        `json:"action_id"`
	Type     ActionType    `json:"type"`
	Success  bool          `json:"success"`
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ExecutionResult is the audit record of one pipeline run.
type ExecutionResult struct {
	ExecutionID string            `json:"execution_id"`
	WorkflowID  string            `json:"workflow_id"`
	UserID      string            `json:"user_id"`
	TriggerKind TriggerKind       `json:"trigger_kind"`
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	ActionsRun  []string          `json:"actions_run"`
	Outcomes    []ActionOutcome   `json:"outcomes,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	Duration    time.Duration     `json:"duration"`
	Timestamp   time.Time         `json:"timestamp"`
}

// DedupRecord marks an external event as processed for one workflow.
type DedupRecord struct {
	EventID     string    `json:"event_id"    validate:"required"`
	WorkflowID  string    `json:"workflow_id" validate:"required"`
	ProcessedAt time.Time `json:"processed_at"`
	Sender      string    `json:"sender,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	EventTime   time.Time `json:"event_time"`
}
