// Package ratelimit enforces a minimum interval between provider queries per key.
package ratelimit

import (
	"context"
	"time"
)

// DefaultInterval is the minimum spacing between two email provider queries for
// the same (workflow, user) pair.
const DefaultInterval = 60 * time.Second

// Decision is the result of a TryAcquire. A denied decision is expected
// behaviour, not an error.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter grants at most one acquisition per key per interval. Implementations
// must be safe for concurrent use.
type Limiter interface {
	TryAcquire(ctx context.Context, key string) (Decision, error)
}

// Key builds the limiter key for a provider-backed trigger check.
func Key(source, workflowID, userID string) string {
	return source + ":" + workflowID + ":" + userID
}
