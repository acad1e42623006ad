// Package persistence provides the storage abstraction for workflows, event
// deduplication records and execution history.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/tripwire/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	DedupRepository() DedupRepository
	ExecutionHistoryRepository() ExecutionHistoryRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DedupRepository is the sole authority for "already processed". Implementations
// must be safe under concurrent use: when two callers race to mark the same
// (event, workflow) pair, exactly one observes true.
type DedupRepository interface {
	IsNew(ctx context.Context, eventID, workflowID string) (bool, error)

	// MarkProcessed durably records the pair. It returns false without error when
	// a record already exists; existing records are never overwritten.
	MarkProcessed(ctx context.Context, record models.DedupRecord) (bool, error)

	// Prune removes records processed before the given time and returns how many.
	Prune(ctx context.Context, before time.Time) (int, error)
}

// ExecutionHistoryRepository is the audit log of pipeline runs.
type ExecutionHistoryRepository interface {
	Record(ctx context.Context, result *models.ExecutionResult) error
	LastExecutionTimestamp(ctx context.Context, workflowID string) (time.Time, bool, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionResult, error)
}

// EnabledWorkflows filters the stored workflows down to the enabled ones.
func EnabledWorkflows(ctx context.Context, p Persistence) ([]*models.Workflow, error) {
	workflows, err := p.Workflows(ctx)
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.Workflow, 0, len(workflows))

	for _, workflow := range workflows {
		if workflow.Enabled {
			enabled = append(enabled, workflow)
		}
	}

	return enabled, nil
}

type dedupOverride struct {
	Persistence

	dedup DedupRepository
}

// WithDedup returns p with its dedup repository replaced, e.g. by a shared Redis store.
func WithDedup(p Persistence, dedup DedupRepository) Persistence {
	return &dedupOverride{Persistence: p, dedup: dedup}
}

func (d *dedupOverride) DedupRepository() DedupRepository {
	return d.dedup
}
