package models

import (
	"fmt"
	"strings"
	"time"
)

// Email is a snapshot of a message returned by an email provider.
type Email struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id,omitempty"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
}

// ChatMessage is a snapshot of a message returned by a chat provider.
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// GeofenceTransitionType is the kind of region boundary event.
type GeofenceTransitionType string

const (
	TransitionEnter GeofenceTransitionType = "enter"
	TransitionExit  GeofenceTransitionType = "exit"
	TransitionDwell GeofenceTransitionType = "dwell"
)

// ParseTransition accepts enter/exit/dwell in any case, with or without a
// "geofence_" prefix.
func ParseTransition(raw string) (GeofenceTransitionType, error) {
	normalized := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "geofence_")

	switch GeofenceTransitionType(normalized) {
	case TransitionEnter:
		return TransitionEnter, nil
	case TransitionExit:
		return TransitionExit, nil
	case TransitionDwell:
		return TransitionDwell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTransition, raw)
	}
}

// GeofenceTransition is delivered by the platform region monitor.
type GeofenceTransition struct {
	GeofenceID     string    `json:"geofence_id"     validate:"required"`
	TransitionType string    `json:"transition_type" validate:"required"`
	Timestamp      time.Time `json:"timestamp"`
}
