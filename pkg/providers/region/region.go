// Package region holds an in-process region monitor and a fixed location environment.
package region

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/tripwire/pkg/protocol"
)

// Monitor keeps registrations in memory. Transitions are reported to the engine
// by the host, e.g. through the HTTP API.
type Monitor struct {
	mu      sync.RWMutex
	regions map[string]protocol.RegionSpec
	logger  *slog.Logger
}

func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{
		regions: make(map[string]protocol.RegionSpec),
		logger:  logger.With("module", "region_monitor"),
	}
}

func (m *Monitor) Register(_ context.Context, spec protocol.RegionSpec) error {
	m.mu.Lock()
	m.regions[spec.RequestID] = spec
	m.mu.Unlock()

	m.logger.Debug("Region registered", "request_id", spec.RequestID, "radius_meters", spec.RadiusMeters)

	return nil
}

func (m *Monitor) Unregister(_ context.Context, requestIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range requestIDs {
		delete(m.regions, id)
	}

	return nil
}

// Regions returns the registered specs ordered by request ID.
func (m *Monitor) Regions() []protocol.RegionSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()

	specs := make([]protocol.RegionSpec, 0, len(m.regions))
	for _, spec := range m.regions {
		specs = append(specs, spec)
	}

	slices.SortFunc(specs, func(a, b protocol.RegionSpec) int {
		switch {
		case a.RequestID < b.RequestID:
			return -1
		case a.RequestID > b.RequestID:
			return 1
		default:
			return 0
		}
	})

	return specs
}

// Environment answers preflight questions from fixed values.
type Environment struct {
	Permission bool
	Services   bool
	Enabled    bool
	Emulator   bool
}

// Ready is an environment where every preflight check passes.
func Ready() Environment {
	return Environment{Permission: true, Services: true, Enabled: true}
}

func (e Environment) PermissionGranted(context.Context) bool { return e.Permission }

func (e Environment) ServicesAvailable(context.Context) bool { return e.Services }

func (e Environment) LocationEnabled(context.Context) bool { return e.Enabled }

func (e Environment) IsEmulator(context.Context) bool { return e.Emulator }
