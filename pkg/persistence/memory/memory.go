// Package memory provides an in-process persistence implementation, used for
// single-run setups and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
)

type Persistence struct {
	mu        sync.RWMutex
	workflows map[string][]byte
	dedup     *DedupRepository
	history   *ExecutionHistoryRepository
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflows: make(map[string][]byte),
		dedup:     NewDedupRepository(),
		history:   NewExecutionHistoryRepository(),
	}
}

// Workflows are stored encoded so callers never share mutable state with the store.
func (p *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(p.workflows))

	for id, data := range p.workflows {
		var workflow models.Workflow
		if err := json.Unmarshal(data, &workflow); err != nil {
			return nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
		}

		workflows = append(workflows, &workflow)
	}

	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })

	return workflows, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	p.mu.RLock()
	data, ok := p.workflows[id]
	p.mu.RUnlock()

	if !ok {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	data, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s: %w", workflow.ID, err)
	}

	p.mu.Lock()
	p.workflows[workflow.ID] = data
	p.mu.Unlock()

	return nil
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	p.mu.Lock()
	delete(p.workflows, id)
	p.mu.Unlock()

	return nil
}

func (p *Persistence) DedupRepository() persistence.DedupRepository {
	return p.dedup
}

func (p *Persistence) ExecutionHistoryRepository() persistence.ExecutionHistoryRepository {
	return p.history
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

type dedupKey struct {
	eventID    string
	workflowID string
}

// DedupRepository keeps dedup records in a mutex-guarded map.
type DedupRepository struct {
	mu      sync.Mutex
	records map[dedupKey]models.DedupRecord
}

func NewDedupRepository() *DedupRepository {
	return &DedupRepository{records: make(map[dedupKey]models.DedupRecord)}
}

func (r *DedupRepository) IsNew(_ context.Context, eventID, workflowID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.records[dedupKey{eventID, workflowID}]

	return !exists, nil
}

func (r *DedupRepository) MarkProcessed(_ context.Context, record models.DedupRecord) (bool, error) {
	if record.EventID == "" || record.WorkflowID == "" {
		return false, persistence.ErrInvalidIdentifier
	}

	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := dedupKey{record.EventID, record.WorkflowID}
	if _, exists := r.records[key]; exists {
		return false, nil
	}

	r.records[key] = record

	return true, nil
}

func (r *DedupRepository) Prune(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0

	for key, record := range r.records {
		if record.ProcessedAt.Before(before) {
			delete(r.records, key)

			removed++
		}
	}

	return removed, nil
}

// Len returns the number of stored records.
func (r *DedupRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

// ExecutionHistoryRepository keeps results in insertion order.
type ExecutionHistoryRepository struct {
	mu      sync.RWMutex
	results []*models.ExecutionResult
}

func NewExecutionHistoryRepository() *ExecutionHistoryRepository {
	return &ExecutionHistoryRepository{}
}

func (r *ExecutionHistoryRepository) Record(_ context.Context, result *models.ExecutionResult) error {
	stored := *result

	r.mu.Lock()
	r.results = append(r.results, &stored)
	r.mu.Unlock()

	return nil
}

func (r *ExecutionHistoryRepository) LastExecutionTimestamp(_ context.Context, workflowID string) (time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		last  time.Time
		found bool
	)

	for _, result := range r.results {
		if result.WorkflowID == workflowID && result.Timestamp.After(last) {
			last = result.Timestamp
			found = true
		}
	}

	return last, found, nil
}

// ListByWorkflow returns the newest results first.
func (r *ExecutionHistoryRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.ExecutionResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.ExecutionResult

	for i := len(r.results) - 1; i >= 0; i-- {
		if r.results[i].WorkflowID != workflowID {
			continue
		}

		result := *r.results[i]
		matched = append(matched, &result)

		if limit > 0 && len(matched) == limit {
			break
		}
	}

	return matched, nil
}
