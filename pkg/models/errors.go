package models

import "errors"

var (
	// ErrInvalidWorkflow wraps every validation failure of a workflow definition.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrInvalidTrigger is returned when a trigger's payload does not match its kind.
	ErrInvalidTrigger = errors.New("invalid trigger configuration")

	// ErrInvalidAction is returned when an action is malformed.
	ErrInvalidAction = errors.New("invalid action configuration")

	// ErrDuplicateID is returned when two triggers in a workflow share an ID.
	ErrDuplicateID = errors.New("duplicate identifier")

	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")

	// ErrUnknownTransition is returned for geofence transition kinds outside enter/exit/dwell.
	ErrUnknownTransition = errors.New("unknown geofence transition")
)
