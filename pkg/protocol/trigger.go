package protocol

import (
	"context"
	"time"

	"github.com/dukex/tripwire/pkg/models"
)

// Evaluation is the outcome of checking one trigger. TriggerData is only set when Fired.
type Evaluation struct {
	Fired       bool
	Message     string
	TriggerData map[string]string
	RetryAfter  time.Duration
}

// NotFired is a convenience for the common negative outcome.
func NotFired(message string) Evaluation {
	return Evaluation{Message: message}
}

// TriggerEvaluator decides whether a trigger condition has newly become true.
// Implementations must be safe for concurrent use.
type TriggerEvaluator interface {
	Kinds() []models.TriggerKind
	Evaluate(ctx context.Context, workflow *models.Workflow, trigger *models.Trigger) (Evaluation, error)
}
