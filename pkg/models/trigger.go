package models

import (
	"fmt"
	"strings"
	"time"
)

// TriggerKind tags the variant carried by a Trigger.
type TriggerKind string

const (
	TriggerKindScheduled      TriggerKind = "scheduled"
	TriggerKindNewEmail       TriggerKind = "new_email"
	TriggerKindFilteredEmail  TriggerKind = "filtered_email"
	TriggerKindNewChatMessage TriggerKind = "new_chat_message"
	TriggerKindChatCommand    TriggerKind = "chat_command"
	TriggerKindGeofenceEnter  TriggerKind = "geofence_enter"
	TriggerKindGeofenceExit   TriggerKind = "geofence_exit"
	TriggerKindGeofenceDwell  TriggerKind = "geofence_dwell"
	TriggerKindManual         TriggerKind = "manual"
)

// TriggerKinds lists every supported kind.
var TriggerKinds = []TriggerKind{
	TriggerKindScheduled,
	TriggerKindNewEmail,
	TriggerKindFilteredEmail,
	TriggerKindNewChatMessage,
	TriggerKindChatCommand,
	TriggerKindGeofenceEnter,
	TriggerKindGeofenceExit,
	TriggerKindGeofenceDwell,
	TriggerKindManual,
}

// Valid reports whether k is one of the known kinds.
func (k TriggerKind) Valid() bool {
	for _, known := range TriggerKinds {
		if k == known {
			return true
		}
	}

	return false
}

// IsGeofence reports whether the kind is one of the region-transition kinds.
func (k TriggerKind) IsGeofence() bool {
	return k == TriggerKindGeofenceEnter || k == TriggerKindGeofenceExit || k == TriggerKindGeofenceDwell
}

// IsEmail reports whether the kind polls an email source.
func (k TriggerKind) IsEmail() bool {
	return k == TriggerKindNewEmail || k == TriggerKindFilteredEmail
}

// IsChat reports whether the kind polls a chat source.
func (k TriggerKind) IsChat() bool {
	return k == TriggerKindNewChatMessage || k == TriggerKindChatCommand
}

// EventDriven reports whether the kind is fired by asynchronous callbacks instead of polling.
func (k TriggerKind) EventDriven() bool {
	return k.IsGeofence()
}

// Transition returns the geofence transition a geofence kind listens to.
func (k TriggerKind) Transition() (GeofenceTransitionType, bool) {
	switch k {
	case TriggerKindGeofenceEnter:
		return TransitionEnter, true
	case TriggerKindGeofenceExit:
		return TransitionExit, true
	case TriggerKindGeofenceDwell:
		return TransitionDwell, true
	default:
		return "", false
	}
}

// Trigger is a tagged union: Kind selects which one of the payload pointers is set.
type Trigger struct {
	ID       string          `json:"id"                 validate:"required"`
	Kind     TriggerKind     `json:"kind"               validate:"required"`
	UserID   string          `json:"user_id"            validate:"required"`
	Schedule *ScheduleConfig `json:"schedule,omitempty"`
	Email    *EmailFilter    `json:"email,omitempty"`
	Chat     *ChatFilter     `json:"chat,omitempty"`
	Geofence *GeofenceRegion `json:"geofence,omitempty"`
	Manual   *ManualConfig   `json:"manual,omitempty"`
}

// ScheduleConfig configures a periodic trigger. Expression is a standard 5-field cron
// expression; when empty, Interval (or the engine default) is used instead.
type ScheduleConfig struct {
	Expression    string        `json:"expression,omitempty"`
	Interval      time.Duration `json:"interval,omitempty"`
	OwnerOverride string        `json:"owner_override,omitempty"`
}

// EmailFilter narrows which incoming emails fire an email trigger.
type EmailFilter struct {
	UnreadOnly bool          `json:"unread_only"`
	From       string        `json:"from,omitempty"`
	Subject    string        `json:"subject,omitempty"`
	Body       string        `json:"body,omitempty"`
	MaxAge     time.Duration `json:"max_age,omitempty"`
}

// HasFilters reports whether any substring filter is configured.
func (f *EmailFilter) HasFilters() bool {
	return f.From != "" || f.Subject != "" || f.Body != ""
}

// ChatFilter narrows which chat messages fire a chat trigger.
type ChatFilter struct {
	Condition string `json:"condition,omitempty"`
	Command   string `json:"command,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
}

// GeofenceRegion is a circular named region.
type GeofenceRegion struct {
	RegionID      string        `json:"region_id"                validate:"required"`
	LocationName  string        `json:"location_name"`
	Latitude      float64       `json:"latitude"                 validate:"gte=-90,lte=90"`
	Longitude     float64       `json:"longitude"                validate:"gte=-180,lte=180"`
	RadiusMeters  float64       `json:"radius_meters"            validate:"gt=0"`
	DwellDuration time.Duration `json:"dwell_duration,omitempty"`
}

// ManualConfig describes a trigger fired only by explicit user action.
// InputSchema, when present, is a JSON schema the synthetic trigger data must satisfy.
type ManualConfig struct {
	DisplayName string         `json:"display_name"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Validate enforces that exactly the payload matching Kind is present.
func (t *Trigger) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTrigger, t.Kind)
	}

	if strings.TrimSpace(t.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidTrigger)
	}

	set := 0
	for _, present := range []bool{t.Schedule != nil, t.Email != nil, t.Chat != nil, t.Geofence != nil, t.Manual != nil} {
		if present {
			set++
		}
	}

	if set > 1 {
		return fmt.Errorf("%w: kind %s carries more than one payload", ErrInvalidTrigger, t.Kind)
	}

	switch {
	case t.Kind == TriggerKindScheduled:
		return t.validateSchedule()
	case t.Kind.IsEmail():
		if t.Email == nil {
			return fmt.Errorf("%w: %s requires an email filter", ErrInvalidTrigger, t.Kind)
		}

		if t.Kind == TriggerKindFilteredEmail && !t.Email.HasFilters() {
			return fmt.Errorf("%w: filtered_email requires a from, subject or body filter", ErrInvalidTrigger)
		}
	case t.Kind.IsChat():
		if t.Chat == nil {
			return fmt.Errorf("%w: %s requires a chat filter", ErrInvalidTrigger, t.Kind)
		}

		if t.Kind == TriggerKindChatCommand && strings.TrimSpace(t.Chat.Command) == "" {
			return fmt.Errorf("%w: chat_command requires a command", ErrInvalidTrigger)
		}
	case t.Kind.IsGeofence():
		return t.validateGeofence()
	case t.Kind == TriggerKindManual:
		if t.Manual == nil {
			return fmt.Errorf("%w: manual requires a display name", ErrInvalidTrigger)
		}
	}

	return nil
}

func (t *Trigger) validateSchedule() error {
	if t.Schedule == nil {
		return fmt.Errorf("%w: scheduled requires a schedule", ErrInvalidTrigger)
	}

	if t.Schedule.Expression != "" {
		if _, err := ParseCron(t.Schedule.Expression); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}
	}

	if t.Schedule.Interval < 0 {
		return fmt.Errorf("%w: negative interval", ErrInvalidSchedule)
	}

	return nil
}

func (t *Trigger) validateGeofence() error {
	region := t.Geofence
	if region == nil {
		return fmt.Errorf("%w: %s requires a region", ErrInvalidTrigger, t.Kind)
	}

	if region.RegionID == "" {
		return fmt.Errorf("%w: region_id is required", ErrInvalidTrigger)
	}

	if region.RadiusMeters <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidTrigger)
	}

	if region.Latitude < -90 || region.Latitude > 90 || region.Longitude < -180 || region.Longitude > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidTrigger)
	}

	if t.Kind == TriggerKindGeofenceDwell && region.DwellDuration <= 0 {
		return fmt.Errorf("%w: geofence_dwell requires a dwell duration", ErrInvalidTrigger)
	}

	return nil
}

// TriggerExecutionResult is the per-trigger outcome of one poll cycle.
type TriggerExecutionResult struct {
	WorkflowID  string        `json:"workflow_id"`
	TriggerID   string        `json:"trigger_id"`
	TriggerKind TriggerKind   `json:"trigger_kind"`
	Triggered   bool          `json:"triggered"`
	Message     string        `json:"message"`
	ExecutionID string        `json:"execution_id,omitempty"`
	RetryAfter  time.Duration `json:"retry_after,omitempty"`
}
