// Package manual registers the evaluator for triggers that only fire on explicit invocation.
package manual

import (
	"context"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
)

const MessageManualOnly = "manual trigger fires only on explicit invocation"

type Evaluator struct{}

func (Evaluator) Kinds() []models.TriggerKind {
	return []models.TriggerKind{models.TriggerKindManual}
}

func (Evaluator) Evaluate(context.Context, *models.Workflow, *models.Trigger) (protocol.Evaluation, error) {
	return protocol.NotFired(MessageManualOnly), nil
}
