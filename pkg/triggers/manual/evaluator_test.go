package manual

import (
	"testing"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator_NeverFiresFromPolling(t *testing.T) {
	trigger := &models.Trigger{ID: "t1", Kind: models.TriggerKindManual, UserID: "u1", Manual: &models.ManualConfig{DisplayName: "Run now"}}

	evaluation, err := Evaluator{}.Evaluate(t.Context(), &models.Workflow{ID: "wf-1"}, trigger)
	require.NoError(t, err)
	assert.False(t, evaluation.Fired)
	assert.Equal(t, MessageManualOnly, evaluation.Message)
}
