// Package triggers holds the pieces shared by the polling trigger evaluators.
package triggers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
)

const (
	MessageRateLimited       = "rate limited"
	MessageSourceUnavailable = "source unavailable"
	MessageDedupWriteFailed  = "dedup write failed"
	MessageAlreadyProcessed  = "already processed"
)

// DefaultRetryDelay is the pause between dedup write attempts.
const DefaultRetryDelay = 100 * time.Millisecond

// Claim records the event as processed for the workflow. It returns true only for
// the caller that wrote the record; transient write errors are retried up to
// retries times. A returned error wraps persistence.ErrDedupWrite.
func Claim(ctx context.Context, repo persistence.DedupRepository, record models.DedupRecord, retries uint64, delay time.Duration) (bool, error) {
	var written bool

	operation := func() error {
		ok, err := repo.MarkProcessed(ctx, record)
		if err != nil {
			return err
		}

		written = ok

		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), retries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return false, persistence.NewDedupError("MarkProcessed", record.EventID, record.WorkflowID, err)
	}

	return written, nil
}

// Cursors remembers, per workflow trigger, the newest event time already handled
// so providers can be asked for newer events only.
type Cursors struct {
	mu      sync.Mutex
	cursors map[string]time.Time
}

func NewCursors() *Cursors {
	return &Cursors{cursors: make(map[string]time.Time)}
}

func cursorKey(workflowID, triggerID string) string {
	return fmt.Sprintf("%s/%s", workflowID, triggerID)
}

func (c *Cursors) Get(workflowID, triggerID string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cursors[cursorKey(workflowID, triggerID)]
}

// Advance moves the cursor forward; it never moves backwards.
func (c *Cursors) Advance(workflowID, triggerID string, seen time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cursorKey(workflowID, triggerID)
	if seen.After(c.cursors[key]) {
		c.cursors[key] = seen
	}
}
