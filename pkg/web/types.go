// Package web provides HTTP request and response types for the engine API.
package web

import (
	"time"

	"github.com/dukex/tripwire/pkg/models"
)

// SaveWorkflowRequest is the body of PUT /workflows/:id. The path ID wins over
// any ID in the body.
type SaveWorkflowRequest struct {
	Name        string            `json:"name"        validate:"required,min=3"`
	Description string            `json:"description"`
	Enabled     bool              `json:"enabled"`
	Owner       string            `json:"owner"       validate:"required"`
	Triggers    []models.Trigger  `json:"triggers"`
	Actions     []models.Action   `json:"actions"`
	Variables   map[string]string `json:"variables,omitempty"`
}

func (r SaveWorkflowRequest) workflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Enabled:     r.Enabled,
		Owner:       r.Owner,
		Triggers:    r.Triggers,
		Actions:     r.Actions,
		Variables:   r.Variables,
	}
}

// TriggerWorkflowRequest is the optional body of POST /workflows/:id/trigger.
type TriggerWorkflowRequest struct {
	UserID  string            `json:"user_id"`
	Payload map[string]string `json:"payload"`
}

type TriggerWorkflowResponse struct {
	ExecutionID string `json:"execution_id"`
}

type CheckTriggersResponse struct {
	Results   []models.TriggerExecutionResult `json:"results"`
	Fired     int                             `json:"fired"`
	CheckedAt time.Time                       `json:"checked_at"`
}

type RefreshGeofencesResponse struct {
	Registered int      `json:"registered"`
	RequestIDs []string `json:"request_ids"`
}

type TransitionResponse struct {
	Matched int                       `json:"matched"`
	Results []*models.ExecutionResult `json:"results"`
}
