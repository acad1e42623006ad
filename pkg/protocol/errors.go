// Package protocol defines the contracts between the engine and its pluggable
// evaluators, actions and external collaborators.
package protocol

import "errors"

var (
	// ErrSourceUnavailable is returned by providers that are not connected for a user.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrContextCritical marks an action failure that must abort the remaining pipeline.
	ErrContextCritical = errors.New("context-critical action failure")

	// ErrInferenceUnavailable is returned when no inference backend can serve a request.
	ErrInferenceUnavailable = errors.New("inference backend unavailable")
)
