package protocol

import (
	"context"
	"time"

	"github.com/dukex/tripwire/pkg/models"
)

// RegionSpec is one platform region-monitor registration.
type RegionSpec struct {
	RequestID      string
	RegionID       string
	Transition     models.GeofenceTransitionType
	Latitude       float64
	Longitude      float64
	RadiusMeters   float64
	LoiteringDelay time.Duration
}

// RegionMonitor is the platform geofencing API.
type RegionMonitor interface {
	Register(ctx context.Context, spec RegionSpec) error
	Unregister(ctx context.Context, requestIDs []string) error
}

// LocationEnvironment answers the preflight questions asked before registering regions.
type LocationEnvironment interface {
	PermissionGranted(ctx context.Context) bool
	ServicesAvailable(ctx context.Context) bool
	LocationEnabled(ctx context.Context) bool
	IsEmulator(ctx context.Context) bool
}
