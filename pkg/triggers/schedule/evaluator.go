// Package schedule evaluates time-based triggers against the workflow's execution history.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/triggers"
)

// DefaultInterval applies to schedules with neither a cron expression nor an interval.
const DefaultInterval = time.Hour

type Evaluator struct {
	history         persistence.ExecutionHistoryRepository
	fired           *triggers.Cursors
	defaultInterval time.Duration
	now             func() time.Time
	logger          *slog.Logger
}

func NewEvaluator(history persistence.ExecutionHistoryRepository, defaultInterval time.Duration, logger *slog.Logger) *Evaluator {
	if defaultInterval <= 0 {
		defaultInterval = DefaultInterval
	}

	return &Evaluator{
		history:         history,
		fired:           triggers.NewCursors(),
		defaultInterval: defaultInterval,
		now:             time.Now,
		logger:          logger.With("module", "schedule_trigger"),
	}
}

// WithClock replaces the time source, for tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now

	return e
}

func (e *Evaluator) Kinds() []models.TriggerKind {
	return []models.TriggerKind{models.TriggerKindScheduled}
}

// Evaluate fires when the workflow never ran, or when the schedule's next occurrence
// after the last run is not in the future. The last run is the later of the last
// recorded execution and the last time this trigger fired, so a run that is still
// in progress counts.
func (e *Evaluator) Evaluate(ctx context.Context, workflow *models.Workflow, trigger *models.Trigger) (protocol.Evaluation, error) {
	schedule := trigger.Schedule
	if schedule == nil {
		return protocol.Evaluation{}, fmt.Errorf("%w: trigger %s has no schedule", models.ErrInvalidTrigger, trigger.ID)
	}

	last, found, err := e.history.LastExecutionTimestamp(ctx, workflow.ID)
	if err != nil {
		return protocol.Evaluation{}, fmt.Errorf("failed to load last execution of %s: %w", workflow.ID, err)
	}

	if lastFired := e.fired.Get(workflow.ID, trigger.ID); lastFired.After(last) {
		last = lastFired
		found = true
	}

	now := e.now()
	due := now

	if found {
		due, err = schedule.NextDue(last, e.defaultInterval)
		if err != nil {
			return protocol.Evaluation{}, fmt.Errorf("%w: %w", models.ErrInvalidSchedule, err)
		}

		if due.After(now) {
			return protocol.NotFired("next run at " + due.UTC().Format(time.RFC3339)), nil
		}
	}

	userID := trigger.UserID
	if schedule.OwnerOverride != "" {
		userID = schedule.OwnerOverride
	}

	e.fired.Advance(workflow.ID, trigger.ID, now)
	e.logger.DebugContext(ctx, "schedule due", "workflow_id", workflow.ID, "trigger_id", trigger.ID, "due", due)

	return protocol.Evaluation{
		Fired:   true,
		Message: "schedule due",
		TriggerData: map[string]string{
			"scheduled_time": due.UTC().Format(time.RFC3339),
			"trigger_type":   string(trigger.Kind),
			"user_id":        userID,
		},
	}, nil
}
