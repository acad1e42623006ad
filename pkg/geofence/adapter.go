// Package geofence turns region-monitor transitions into workflow executions.
package geofence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/tripwire/pkg/eventbus"
	"github.com/dukex/tripwire/pkg/events"
	"github.com/dukex/tripwire/pkg/metrics"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/workflow"
)

const Source = "geofence"

// Dispatcher runs one pipeline execution; *workflow.Manager satisfies it.
type Dispatcher interface {
	Dispatch(workflow *models.Workflow, execCtx *models.ExecutionContext) <-chan *models.ExecutionResult
}

type Adapter struct {
	persistence persistence.Persistence
	monitor     protocol.RegionMonitor
	environment protocol.LocationEnvironment
	dispatcher  Dispatcher
	bus         eventbus.EventPublisher
	metrics     *metrics.Registry
	logger      *slog.Logger

	mu         sync.Mutex
	registered []string
}

type Option func(*Adapter)

func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(a *Adapter) { a.bus = bus }
}

func WithMetrics(r *metrics.Registry) Option {
	return func(a *Adapter) { a.metrics = r }
}

func NewAdapter(
	p persistence.Persistence,
	monitor protocol.RegionMonitor,
	environment protocol.LocationEnvironment,
	dispatcher Dispatcher,
	logger *slog.Logger,
	opts ...Option,
) *Adapter {
	a := &Adapter{
		persistence: p,
		monitor:     monitor,
		environment: environment,
		dispatcher:  dispatcher,
		bus:         eventbus.Nop{},
		logger:      logger.With("module", "geofence_adapter"),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// RequestID identifies one region registration. Triggers on the same region and
// transition share it.
func RequestID(regionID string, transition models.GeofenceTransitionType) string {
	return regionID + "/" + string(transition)
}

// Preflight reports every environment problem that blocks region monitoring.
func (a *Adapter) Preflight(ctx context.Context) error {
	var problems []string

	if !a.environment.PermissionGranted(ctx) {
		problems = append(problems, "location permission not granted")
	}

	if !a.environment.ServicesAvailable(ctx) {
		problems = append(problems, "location services unavailable")
	}

	if !a.environment.LocationEnabled(ctx) {
		problems = append(problems, "location is disabled")
	}

	if a.environment.IsEmulator(ctx) {
		problems = append(problems, "running on an emulator")
	}

	if len(problems) > 0 {
		return &PreflightError{Problems: problems}
	}

	return nil
}

// Specs builds one registration per geofence trigger of the enabled workflows.
func (a *Adapter) Specs(ctx context.Context) ([]protocol.RegionSpec, error) {
	workflows, err := persistence.EnabledWorkflows(ctx, a.persistence)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	seen := make(map[string]bool)

	var specs []protocol.RegionSpec

	for _, wf := range workflows {
		for _, trigger := range wf.Triggers {
			transition, ok := trigger.Kind.Transition()
			if !ok || trigger.Geofence == nil {
				continue
			}

			region := trigger.Geofence
			spec := protocol.RegionSpec{
				RequestID:    RequestID(region.RegionID, transition),
				RegionID:     region.RegionID,
				Transition:   transition,
				Latitude:     region.Latitude,
				Longitude:    region.Longitude,
				RadiusMeters: region.RadiusMeters,
			}

			if transition == models.TransitionDwell {
				spec.LoiteringDelay = region.DwellDuration
			}

			if seen[spec.RequestID] {
				continue
			}

			seen[spec.RequestID] = true
			specs = append(specs, spec)
		}
	}

	return specs, nil
}

// RegisterAllActiveGeofences replaces the current registrations with one per
// active geofence trigger. A preflight failure registers nothing; a registration
// failure rolls back the regions registered by this call.
func (a *Adapter) RegisterAllActiveGeofences(ctx context.Context) (int, error) {
	if err := a.Preflight(ctx); err != nil {
		a.logger.Warn("Geofence preflight failed", "error", err)

		return 0, err
	}

	specs, err := a.Specs(ctx)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.registered) > 0 {
		if err := a.monitor.Unregister(ctx, a.registered); err != nil {
			a.logger.Warn("Failed to unregister previous geofences", "count", len(a.registered), "error", err)
		}

		a.registered = nil
	}

	registered := make([]string, 0, len(specs))

	for _, spec := range specs {
		if err := a.monitor.Register(ctx, spec); err != nil {
			if len(registered) > 0 {
				if rollbackErr := a.monitor.Unregister(ctx, registered); rollbackErr != nil {
					err = errors.Join(err, fmt.Errorf("rollback: %w", rollbackErr))
				}
			}

			a.logger.Error("Geofence registration failed", "geofence_id", spec.RegionID, "error", err)

			return 0, fmt.Errorf("failed to register geofence %s: %w", spec.RequestID, err)
		}

		registered = append(registered, spec.RequestID)
	}

	a.registered = registered

	a.logger.Info("Registered geofences", "count", len(registered))

	event := events.GeofencesRegistered{
		BaseEvent: events.NewBaseEvent(events.GeofencesRegisteredEvent, ""),
		Count:     len(registered),
	}
	if err := a.bus.Publish(ctx, "geofences", event); err != nil {
		a.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}

	return len(registered), nil
}

// RefreshGeofences re-registers after workflows changed.
func (a *Adapter) RefreshGeofences(ctx context.Context) (int, error) {
	return a.RegisterAllActiveGeofences(ctx)
}

// Registered returns the request IDs currently registered.
func (a *Adapter) Registered() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.registered...)
}

// HandleTransition runs every workflow whose geofence trigger matches the region
// and transition exactly. Matches run concurrently and independently; an unknown
// transition is logged and ignored.
func (a *Adapter) HandleTransition(ctx context.Context, transition models.GeofenceTransition) []*models.ExecutionResult {
	logger := a.logger.With("geofence_id", transition.GeofenceID)

	kind, err := models.ParseTransition(transition.TransitionType)
	if err != nil {
		logger.Warn("Ignoring geofence transition", "transition_type", transition.TransitionType, "error", err)

		return nil
	}

	workflows, err := persistence.EnabledWorkflows(ctx, a.persistence)
	if err != nil {
		logger.Error("Failed to load workflows for geofence transition", "error", err)

		return nil
	}

	timestamp := transition.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var pending []<-chan *models.ExecutionResult

	for _, wf := range workflows {
		for _, trigger := range wf.Triggers {
			triggerTransition, ok := trigger.Kind.Transition()
			if !ok || trigger.Geofence == nil || triggerTransition != kind || trigger.Geofence.RegionID != transition.GeofenceID {
				continue
			}

			userID := trigger.UserID
			if userID == "" {
				userID = wf.Owner
			}

			data := map[string]string{
				"geofence_id":     transition.GeofenceID,
				"transition_type": string(kind),
				"location_name":   trigger.Geofence.LocationName,
				"timestamp":       timestamp.UTC().Format(time.RFC3339),
				"source":          Source,
				"user_id":         userID,
			}

			execCtx := models.NewExecutionContext(workflow.NewExecutionID(), wf, userID, trigger.Kind, data)
			execCtx.TriggerID = trigger.ID

			logger.Info("Geofence trigger matched", "workflow_id", wf.ID, "trigger_id", trigger.ID, "execution_id", execCtx.ID)
			pending = append(pending, a.dispatcher.Dispatch(wf, execCtx))
		}
	}

	a.metrics.GeofenceTransition(string(kind), len(pending) > 0)

	if len(pending) == 0 {
		logger.Debug("No workflow matched geofence transition", "transition_type", kind)

		return nil
	}

	results := make([]*models.ExecutionResult, 0, len(pending))
	for _, ch := range pending {
		results = append(results, <-ch)
	}

	return results
}
