// Package actions holds helpers shared by the action executors.
package actions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/mitchellh/mapstructure"
)

var ErrInvalidConfiguration = errors.New("invalid action configuration")

// Decode maps an action's rendered configuration onto target. Numbers written as
// strings and durations such as "5s" are accepted.
func Decode(action models.Action, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
		TagName:          "json",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(action.Configuration); err != nil {
		return fmt.Errorf("%w: action %s: %w", ErrInvalidConfiguration, action.ID, err)
	}

	return nil
}

// RequireUser fails with protocol.ErrContextCritical when the execution has no user identity.
func RequireUser(execCtx *models.ExecutionContext) (string, error) {
	if strings.TrimSpace(execCtx.UserID) == "" {
		return "", fmt.Errorf("%w: execution %s has no user", protocol.ErrContextCritical, execCtx.ID)
	}

	return execCtx.UserID, nil
}

// FirstNonEmpty returns the first argument that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}

	return ""
}

// Required reports a configuration error for a blank field.
func Required(action models.Action, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: action %s requires %s", ErrInvalidConfiguration, action.ID, field)
	}

	return nil
}

// FirstPositive returns the first argument greater than zero, or zero.
func FirstPositive(values ...int) int {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}

	return 0
}
