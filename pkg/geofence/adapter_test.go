package geofence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dukex/tripwire/pkg/log"
	"github.com/dukex/tripwire/pkg/mocks"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence/memory"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/providers/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordingDispatcher completes every execution immediately, failing the ones
// whose workflow ID is listed in fail.
type recordingDispatcher struct {
	mu       sync.Mutex
	contexts []*models.ExecutionContext
	fail     map[string]bool
}

func (d *recordingDispatcher) Dispatch(wf *models.Workflow, execCtx *models.ExecutionContext) <-chan *models.ExecutionResult {
	d.mu.Lock()
	d.contexts = append(d.contexts, execCtx)
	d.mu.Unlock()

	out := make(chan *models.ExecutionResult, 1)

	go func() {
		out <- &models.ExecutionResult{
			ExecutionID: execCtx.ID,
			WorkflowID:  wf.ID,
			Success:     !d.fail[wf.ID],
			Variables:   execCtx.Snapshot(),
		}
	}()

	return out
}

func geofenceWorkflow(id string, enabled bool, triggers ...models.Trigger) *models.Workflow {
	return &models.Workflow{ID: id, Owner: "owner-" + id, Enabled: enabled, Triggers: triggers}
}

func geofenceTrigger(id string, kind models.TriggerKind, regionID string) models.Trigger {
	return models.Trigger{
		ID:     id,
		Kind:   kind,
		UserID: "u1",
		Geofence: &models.GeofenceRegion{
			RegionID:      regionID,
			LocationName:  "Home sweet home",
			Latitude:      38.7,
			Longitude:     -9.1,
			RadiusMeters:  150,
			DwellDuration: 5 * time.Minute,
		},
	}
}

func newFixture(t *testing.T, env protocol.LocationEnvironment, monitor protocol.RegionMonitor) (*Adapter, *memory.Persistence, *recordingDispatcher) {
	t.Helper()

	store := memory.NewPersistence()
	dispatcher := &recordingDispatcher{fail: map[string]bool{}}

	return NewAdapter(store, monitor, env, dispatcher, log.Discard()), store, dispatcher
}

func save(t *testing.T, store *memory.Persistence, workflows ...*models.Workflow) {
	t.Helper()

	for _, wf := range workflows {
		require.NoError(t, store.SaveWorkflow(t.Context(), wf))
	}
}

func TestAdapter_RegisterAllActiveGeofences(t *testing.T) {
	monitor := region.NewMonitor(log.Discard())
	adapter, store, _ := newFixture(t, region.Ready(), monitor)

	save(t, store,
		geofenceWorkflow("wf-1", true,
			geofenceTrigger("arrive", models.TriggerKindGeofenceEnter, "home"),
			geofenceTrigger("linger", models.TriggerKindGeofenceDwell, "home"),
			models.Trigger{ID: "m", Kind: models.TriggerKindManual, UserID: "u1", Manual: &models.ManualConfig{}},
		),
		geofenceWorkflow("wf-2", true, geofenceTrigger("arrive", models.TriggerKindGeofenceEnter, "home")),
		geofenceWorkflow("wf-off", false, geofenceTrigger("leave", models.TriggerKindGeofenceExit, "work")),
	)

	count, err := adapter.RegisterAllActiveGeofences(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	regions := monitor.Regions()
	require.Len(t, regions, 2)
	assert.Equal(t, "home/dwell", regions[0].RequestID)
	assert.Equal(t, 5*time.Minute, regions[0].LoiteringDelay)
	assert.Equal(t, "home/enter", regions[1].RequestID)
	assert.Zero(t, regions[1].LoiteringDelay)
	assert.InDelta(t, 150, regions[1].RadiusMeters, 0)

	t.Run("refresh replaces previous registrations", func(t *testing.T) {
		require.NoError(t, store.DeleteWorkflow(t.Context(), "wf-1"))

		count, err := adapter.RefreshGeofences(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, []string{"home/enter"}, adapter.Registered())
		assert.Len(t, monitor.Regions(), 1)
	})
}

func TestAdapter_PreflightReportsEveryProblem(t *testing.T) {
	monitor := &mocks.MockRegionMonitor{}
	adapter, store, _ := newFixture(t, region.Environment{Services: true, Emulator: true}, monitor)
	save(t, store, geofenceWorkflow("wf-1", true, geofenceTrigger("arrive", models.TriggerKindGeofenceEnter, "home")))

	_, err := adapter.RegisterAllActiveGeofences(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreflightFailed)
	assert.True(t, IsPreflightError(err))

	var preflight *PreflightError
	require.ErrorAs(t, err, &preflight)
	assert.Equal(t, []string{
		"location permission not granted",
		"location is disabled",
		"running on an emulator",
	}, preflight.Problems)

	monitor.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestAdapter_RegistrationFailureRollsBack(t *testing.T) {
	monitor := &mocks.MockRegionMonitor{}
	monitor.On("Register", mock.Anything, mock.MatchedBy(func(spec protocol.RegionSpec) bool {
		return spec.RegionID == "gym"
	})).Return(nil)
	monitor.On("Register", mock.Anything, mock.MatchedBy(func(spec protocol.RegionSpec) bool {
		return spec.RegionID == "home"
	})).Return(errors.New("too many regions"))
	monitor.On("Unregister", mock.Anything, []string{"gym/enter"}).Return(nil)

	adapter, store, _ := newFixture(t, region.Ready(), monitor)
	save(t, store,
		geofenceWorkflow("wf-a", true, geofenceTrigger("gym", models.TriggerKindGeofenceEnter, "gym")),
		geofenceWorkflow("wf-b", true, geofenceTrigger("home", models.TriggerKindGeofenceEnter, "home")),
	)

	_, err := adapter.RegisterAllActiveGeofences(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many regions")
	assert.Empty(t, adapter.Registered())
	monitor.AssertExpectations(t)
}

func TestAdapter_HandleTransition_MatchesExactly(t *testing.T) {
	adapter, store, dispatcher := newFixture(t, region.Ready(), region.NewMonitor(log.Discard()))
	dispatcher.fail["wf-2"] = true

	save(t, store,
		geofenceWorkflow("wf-1", true, geofenceTrigger("arrive", models.TriggerKindGeofenceEnter, "home")),
		geofenceWorkflow("wf-2", true, geofenceTrigger("arrive", models.TriggerKindGeofenceEnter, "home")),
		geofenceWorkflow("wf-3", true, geofenceTrigger("leave", models.TriggerKindGeofenceExit, "home")),
		geofenceWorkflow("wf-4", true, geofenceTrigger("arrive", models.TriggerKindGeofenceEnter, "home-2")),
		geofenceWorkflow("wf-off", false, geofenceTrigger("arrive", models.TriggerKindGeofenceEnter, "home")),
	)

	at := time.Date(2025, 5, 1, 18, 30, 0, 0, time.UTC)
	results := adapter.HandleTransition(t.Context(), models.GeofenceTransition{
		GeofenceID:     "home",
		TransitionType: "ENTER",
		Timestamp:      at,
	})

	require.Len(t, results, 2)

	byWorkflow := map[string]bool{}
	for _, result := range results {
		byWorkflow[result.WorkflowID] = result.Success
	}

	assert.Equal(t, map[string]bool{"wf-1": true, "wf-2": false}, byWorkflow, "one failure does not block the other")

	execCtx := dispatcher.contexts[0]
	assert.Equal(t, map[string]string{
		"geofence_id":     "home",
		"transition_type": "enter",
		"location_name":   "Home sweet home",
		"timestamp":       "2025-05-01T18:30:00Z",
		"source":          "geofence",
		"user_id":         "u1",
	}, execCtx.TriggerData)
	assert.Equal(t, "arrive", execCtx.TriggerID)
	assert.Equal(t, models.TriggerKindGeofenceEnter, execCtx.TriggerKind)
}

func TestAdapter_HandleTransition_IgnoresUnknownKind(t *testing.T) {
	adapter, store, dispatcher := newFixture(t, region.Ready(), region.NewMonitor(log.Discard()))
	save(t, store, geofenceWorkflow("wf-1", true, geofenceTrigger("arrive", models.TriggerKindGeofenceEnter, "home")))

	results := adapter.HandleTransition(t.Context(), models.GeofenceTransition{GeofenceID: "home", TransitionType: "teleport"})

	assert.Empty(t, results)
	assert.Empty(t, dispatcher.contexts)
}

func TestAdapter_HandleTransition_ConcurrentCallers(t *testing.T) {
	adapter, store, dispatcher := newFixture(t, region.Ready(), region.NewMonitor(log.Discard()))
	save(t, store, geofenceWorkflow("wf-1", true, geofenceTrigger("leave", models.TriggerKindGeofenceExit, "office")))

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results := adapter.HandleTransition(context.Background(), models.GeofenceTransition{GeofenceID: "office", TransitionType: "exit"})
			assert.Len(t, results, 1)
		}()
	}

	wg.Wait()

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()

	assert.Len(t, dispatcher.contexts, 8)
}
