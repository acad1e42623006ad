package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())

	r.TriggerChecked("new_email", ResultFired)
	r.TriggerChecked("new_email", ResultFired)
	r.TriggerChecked("new_email", ResultRateLimited)
	r.ExecutionFinished("new_email", false, time.Second)
	r.SummaryProduced("extractive")
	r.GeofenceTransition("enter", true)
	r.DedupPruned(4)
	r.DedupPruned(-1)

	assert.InDelta(t, 2, testutil.ToFloat64(r.TriggerChecksTotal.WithLabelValues("new_email", ResultFired)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.TriggerChecksTotal.WithLabelValues("new_email", ResultRateLimited)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.ExecutionsTotal.WithLabelValues("new_email", "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.SummaryStrategyTotal.WithLabelValues("extractive")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.GeofenceTransitions.WithLabelValues("enter", "true")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(r.DedupPrunedTotal), 0)
}

func TestRegistry_InFlight(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())

	r.ExecutionStarted()
	r.ExecutionStarted()
	r.ExecutionDone()

	assert.InDelta(t, 1, testutil.ToFloat64(r.InFlightExecutions), 0)
}

func TestRegistry_Gather(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())
	r.TriggerChecked("scheduled", ResultNotFired)

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}

	assert.Contains(t, names, "tripwire_trigger_checks_total")
}

func TestRegistry_NilIsSafe(t *testing.T) {
	var r *Registry

	assert.NotPanics(t, func() {
		r.TriggerChecked("manual", ResultError)
		r.ExecutionFinished("manual", true, 0)
		r.ActionFailed("log")
		r.SummaryProduced("ai")
		r.GeofenceTransition("exit", false)
		r.DedupPruned(1)
		r.ExecutionStarted()
		r.ExecutionDone()
	})

	_, err := r.Gatherer().Gather()
	assert.NoError(t, err)
}
