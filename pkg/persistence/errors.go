// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidIdentifier indicates an ID that cannot be used as a storage key.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrDedupWrite indicates a dedup record could not be durably written.
	ErrDedupWrite = errors.New("dedup write failed")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// DedupError wraps a failed dedup store operation.
type DedupError struct {
	Op         string
	EventID    string
	WorkflowID string
	Err        error
}

func (e *DedupError) Error() string {
	return fmt.Sprintf("%s failed for event %s in workflow %s: %v", e.Op, e.EventID, e.WorkflowID, e.Err)
}

func (e *DedupError) Unwrap() []error {
	return []error{ErrDedupWrite, e.Err}
}

func NewDedupError(op, eventID, workflowID string, err error) *DedupError {
	return &DedupError{Op: op, EventID: eventID, WorkflowID: workflowID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
