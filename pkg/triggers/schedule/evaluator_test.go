package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/tripwire/pkg/log"
	"github.com/dukex/tripwire/pkg/mocks"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func scheduledTrigger(schedule *models.ScheduleConfig) *models.Trigger {
	return &models.Trigger{ID: "t1", Kind: models.TriggerKindScheduled, UserID: "owner", Schedule: schedule}
}

func TestEvaluator_FiresWhenNeverRun(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	evaluator := NewEvaluator(memory.NewExecutionHistoryRepository(), 0, log.Discard()).
		WithClock(func() time.Time { return now })

	evaluation, err := evaluator.Evaluate(t.Context(), &models.Workflow{ID: "wf-1"}, scheduledTrigger(&models.ScheduleConfig{Expression: "0 * * * *"}))
	require.NoError(t, err)
	assert.True(t, evaluation.Fired)
	assert.Equal(t, "2025-01-01T09:00:00Z", evaluation.TriggerData["scheduled_time"])
	assert.Equal(t, "scheduled", evaluation.TriggerData["trigger_type"])
	assert.Equal(t, "owner", evaluation.TriggerData["user_id"])
}

func TestEvaluator_CronCadence(t *testing.T) {
	history := memory.NewExecutionHistoryRepository()
	last := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, history.Record(t.Context(), &models.ExecutionResult{ExecutionID: "e1", WorkflowID: "wf-1", Timestamp: last}))

	trigger := scheduledTrigger(&models.ScheduleConfig{Expression: "0 * * * *"})
	workflow := &models.Workflow{ID: "wf-1"}

	tests := []struct {
		name  string
		now   time.Time
		fired bool
	}{
		{"before next occurrence", last.Add(59 * time.Minute), false},
		{"at next occurrence", last.Add(time.Hour), true},
		{"missed occurrence", last.Add(5 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator := NewEvaluator(history, 0, log.Discard()).WithClock(func() time.Time { return tt.now })

			evaluation, err := evaluator.Evaluate(t.Context(), workflow, trigger)
			require.NoError(t, err)
			assert.Equal(t, tt.fired, evaluation.Fired)
		})
	}
}

func TestEvaluator_IntervalAndOwnerOverride(t *testing.T) {
	history := memory.NewExecutionHistoryRepository()
	last := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, history.Record(t.Context(), &models.ExecutionResult{ExecutionID: "e1", WorkflowID: "wf-1", Timestamp: last}))

	trigger := scheduledTrigger(&models.ScheduleConfig{Interval: 10 * time.Minute, OwnerOverride: "delegate"})

	evaluator := NewEvaluator(history, time.Hour, log.Discard()).WithClock(func() time.Time { return last.Add(9 * time.Minute) })
	evaluation, err := evaluator.Evaluate(t.Context(), &models.Workflow{ID: "wf-1"}, trigger)
	require.NoError(t, err)
	assert.False(t, evaluation.Fired)
	assert.Contains(t, evaluation.Message, "next run at")

	evaluator.WithClock(func() time.Time { return last.Add(10 * time.Minute) })
	evaluation, err = evaluator.Evaluate(t.Context(), &models.Workflow{ID: "wf-1"}, trigger)
	require.NoError(t, err)
	assert.True(t, evaluation.Fired)
	assert.Equal(t, "delegate", evaluation.TriggerData["user_id"])
}

func TestEvaluator_HistoryError(t *testing.T) {
	history := &mocks.MockExecutionHistoryRepository{}
	history.On("LastExecutionTimestamp", mock.Anything, "wf-1").Return(time.Time{}, false, errors.New("db down"))

	_, err := NewEvaluator(history, 0, log.Discard()).
		Evaluate(t.Context(), &models.Workflow{ID: "wf-1"}, scheduledTrigger(&models.ScheduleConfig{}))
	assert.ErrorContains(t, err, "db down")
}

func TestEvaluator_MissingSchedule(t *testing.T) {
	_, err := NewEvaluator(memory.NewExecutionHistoryRepository(), 0, log.Discard()).
		Evaluate(t.Context(), &models.Workflow{ID: "wf-1"}, scheduledTrigger(nil))
	assert.ErrorIs(t, err, models.ErrInvalidTrigger)
}

func TestEvaluator_FireTimeCountsBeforeHistoryIsWritten(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	workflow := &models.Workflow{ID: "wf-1"}
	trigger := scheduledTrigger(&models.ScheduleConfig{Interval: time.Hour})

	evaluator := NewEvaluator(memory.NewExecutionHistoryRepository(), 0, log.Discard()).
		WithClock(func() time.Time { return now })

	evaluation, err := evaluator.Evaluate(t.Context(), workflow, trigger)
	require.NoError(t, err)
	assert.True(t, evaluation.Fired)

	now = now.Add(30 * time.Second)
	evaluation, err = evaluator.Evaluate(t.Context(), workflow, trigger)
	require.NoError(t, err)
	assert.False(t, evaluation.Fired, "run still in progress")
	assert.Contains(t, evaluation.Message, "2025-01-01T10:00:00Z")

	now = now.Add(time.Hour)
	evaluation, err = evaluator.Evaluate(t.Context(), workflow, trigger)
	require.NoError(t, err)
	assert.True(t, evaluation.Fired)

	other := &models.Workflow{ID: "wf-2"}
	evaluation, err = evaluator.Evaluate(t.Context(), other, trigger)
	require.NoError(t, err)
	assert.True(t, evaluation.Fired, "fire times are kept per workflow")
}
