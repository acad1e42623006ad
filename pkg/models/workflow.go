// Package models defines the core domain models for trigger-driven workflow automation
package models

import (
	"errors"
	"fmt"
	"time"
)

// Workflow is a "when X happens, do Y" rule owned by a single user.
// A workflow with no triggers never fires; one with no actions does nothing when it fires.
type Workflow struct {
	ID          string            `json:"id"                    validate:"required"`
	Name        string            `json:"name"                  validate:"required,min=3"`
	Description string            `json:"description,omitempty"`
	Enabled     bool              `json:"enabled"`
	Owner       string            `json:"owner"                 validate:"required"`
	Triggers    []Trigger         `json:"triggers"              validate:"dive"`
	Actions     []Action          `json:"actions"               validate:"dive"`
	Variables   map[string]string `json:"variables,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// TriggerByID returns the trigger with the given ID, if present.
func (w *Workflow) TriggerByID(id string) (*Trigger, bool) {
	for i := range w.Triggers {
		if w.Triggers[i].ID == id {
			return &w.Triggers[i], true
		}
	}

	return nil, false
}

// TriggersOfKind returns the triggers matching any of the given kinds, in definition order.
func (w *Workflow) TriggersOfKind(kinds ...TriggerKind) []Trigger {
	var matched []Trigger

	for _, trigger := range w.Triggers {
		for _, kind := range kinds {
			if trigger.Kind == kind {
				matched = append(matched, trigger)

				break
			}
		}
	}

	return matched
}

// Validate checks the variant invariants that struct tags cannot express.
func (w *Workflow) Validate() error {
	var errs []error

	seen := make(map[string]bool, len(w.Triggers))

	for i := range w.Triggers {
		trigger := &w.Triggers[i]
		if seen[trigger.ID] {
			errs = append(errs, fmt.Errorf("trigger %s: %w", trigger.ID, ErrDuplicateID))
		}

		seen[trigger.ID] = true

		if err := trigger.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("trigger %s: %w", trigger.ID, err))
		}
	}

	for i := range w.Actions {
		if err := w.Actions[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("action %s: %w", w.Actions[i].ID, err))
		}
	}

	return errors.Join(errs...)
}
