package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/tripwire/pkg/models"
)

type ExecutionHistoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionHistoryRepository(db *sql.DB, logger *slog.Logger) *ExecutionHistoryRepository {
	return &ExecutionHistoryRepository{db: db, logger: logger}
}

func (r *ExecutionHistoryRepository) Record(ctx context.Context, result *models.ExecutionResult) error {
	actionsJSON, err := marshalOrDefault(result.ActionsRun, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal actions run: %w", err)
	}

	outcomesJSON, err := marshalOrDefault(result.Outcomes, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal outcomes: %w", err)
	}

	variablesJSON, err := marshalOrDefault(result.Variables, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO execution_history (execution_id, workflow_id, user_id, trigger_kind, success, message,
			actions_run, outcomes, variables, duration_ms, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (execution_id) DO NOTHING
	`,
		result.ExecutionID,
		result.WorkflowID,
		result.UserID,
		string(result.TriggerKind),
		result.Success,
		result.Message,
		actionsJSON,
		outcomesJSON,
		variablesJSON,
		result.Duration.Milliseconds(),
		result.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution %s: %w", result.ExecutionID, err)
	}

	return nil
}

func (r *ExecutionHistoryRepository) LastExecutionTimestamp(ctx context.Context, workflowID string) (time.Time, bool, error) {
	var last sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(executed_at) FROM execution_history WHERE workflow_id = $1`, workflowID,
	).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, fmt.Errorf("failed to query last execution: %w", err)
	}

	return last.Time, last.Valid, nil
}

// ListByWorkflow returns the newest results first.
func (r *ExecutionHistoryRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionResult, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT execution_id, workflow_id, user_id, trigger_kind, success, message,
			actions_run, outcomes, variables, duration_ms, executed_at
		FROM execution_history
		WHERE workflow_id = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution history: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var results []*models.ExecutionResult

	for rows.Next() {
		var (
			result                                models.ExecutionResult
			kind                                  string
			durationMs                            int64
			actionsJSON, outcomesJSON, varsJSON []byte
		)

		err := rows.Scan(&result.ExecutionID, &result.WorkflowID, &result.UserID, &kind, &result.Success,
			&result.Message, &actionsJSON, &outcomesJSON, &varsJSON, &durationMs, &result.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		result.TriggerKind = models.TriggerKind(kind)
		result.Duration = time.Duration(durationMs) * time.Millisecond

		if err := errors.Join(
			json.Unmarshal(actionsJSON, &result.ActionsRun),
			json.Unmarshal(outcomesJSON, &result.Outcomes),
			json.Unmarshal(varsJSON, &result.Variables),
		); err != nil {
			return nil, fmt.Errorf("failed to decode execution %s: %w", result.ExecutionID, err)
		}

		results = append(results, &result)
	}

	return results, rows.Err()
}
