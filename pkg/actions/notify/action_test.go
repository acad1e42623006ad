package notify

import (
	"errors"
	"testing"

	"github.com/dukex/tripwire/pkg/actions"
	"github.com/dukex/tripwire/pkg/log"
	"github.com/dukex/tripwire/pkg/mocks"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAction_Execute(t *testing.T) {
	notifier := &mocks.MockNotifier{}
	notifier.On("Notify", mock.Anything, "u1", "Workflow notification", "Arrived home").Return(nil)

	execCtx := models.NewExecutionContext("exec-1", &models.Workflow{ID: "wf-1"}, "u1", models.TriggerKindGeofenceEnter, nil)

	output, err := NewAction(notifier).Execute(t.Context(), execCtx, models.Action{
		ID: "n", Type: models.ActionNotify, Configuration: map[string]any{"body": "Arrived home"},
	}, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, "u1", output.Value)
	notifier.AssertExpectations(t)
}

func TestAction_Errors(t *testing.T) {
	execCtx := models.NewExecutionContext("exec-1", &models.Workflow{ID: "wf-1"}, "u1", models.TriggerKindManual, nil)

	_, err := NewAction(&mocks.MockNotifier{}).Execute(t.Context(), execCtx, models.Action{ID: "n", Type: models.ActionNotify}, log.Discard())
	assert.ErrorIs(t, err, actions.ErrInvalidConfiguration)

	notifier := &mocks.MockNotifier{}
	notifier.On("Notify", mock.Anything, "u9", mock.Anything, mock.Anything).Return(errors.New("offline"))

	_, err = NewAction(notifier).Execute(t.Context(), execCtx, models.Action{
		ID: "n", Type: models.ActionNotify, Configuration: map[string]any{"body": "hi", "user_id": "u9"},
	}, log.Discard())
	assert.ErrorContains(t, err, "offline")
}
