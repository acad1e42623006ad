package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dukex/tripwire/pkg/models"
)

// ExecutionHistoryRepository appends results as JSON lines to <root>/executions/<workflow>.jsonl.
type ExecutionHistoryRepository struct {
	root string
	mu   sync.Mutex
}

func NewExecutionHistoryRepository(root string) *ExecutionHistoryRepository {
	return &ExecutionHistoryRepository{root: filepath.Join(root, "executions")}
}

func (r *ExecutionHistoryRepository) logPath(workflowID string) string {
	return filepath.Join(r.root, workflowID+".jsonl")
}

func (r *ExecutionHistoryRepository) Record(_ context.Context, result *models.ExecutionResult) error {
	if err := validateID(result.WorkflowID); err != nil {
		return fmt.Errorf("failed to record execution %s: %w", result.ExecutionID, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", result.ExecutionID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.root, 0750); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	file, err := os.OpenFile(r.logPath(result.WorkflowID), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open execution log: %w", err)
	}

	_, writeErr := file.Write(append(data, '\n'))

	return errors.Join(writeErr, file.Close())
}

func (r *ExecutionHistoryRepository) readAll(workflowID string) ([]*models.ExecutionResult, error) {
	if err := validateID(workflowID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.Open(r.logPath(workflowID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open execution log: %w", err)
	}
	defer file.Close()

	var results []*models.ExecutionResult

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		var result models.ExecutionResult
		if err := json.Unmarshal(scanner.Bytes(), &result); err != nil {
			return nil, fmt.Errorf("failed to decode execution log line: %w", err)
		}

		results = append(results, &result)
	}

	return results, scanner.Err()
}

func (r *ExecutionHistoryRepository) LastExecutionTimestamp(_ context.Context, workflowID string) (time.Time, bool, error) {
	results, err := r.readAll(workflowID)
	if err != nil {
		return time.Time{}, false, err
	}

	var last time.Time
	for _, result := range results {
		if result.Timestamp.After(last) {
			last = result.Timestamp
		}
	}

	return last, len(results) > 0, nil
}

// ListByWorkflow returns the newest results first.
func (r *ExecutionHistoryRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.ExecutionResult, error) {
	results, err := r.readAll(workflowID)
	if err != nil {
		return nil, err
	}

	newest := make([]*models.ExecutionResult, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		newest = append(newest, results[i])

		if limit > 0 && len(newest) == limit {
			break
		}
	}

	return newest, nil
}
