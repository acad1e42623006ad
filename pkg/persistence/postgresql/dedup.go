package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
)

// DedupRepository relies on the (event_id, workflow_id) primary key: the first
// insert wins and later ones are discarded by ON CONFLICT DO NOTHING.
type DedupRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDedupRepository(db *sql.DB, logger *slog.Logger) *DedupRepository {
	return &DedupRepository{db: db, logger: logger}
}

func (r *DedupRepository) IsNew(ctx context.Context, eventID, workflowID string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1 AND workflow_id = $2)`,
		eventID, workflowID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query processed event: %w", err)
	}

	return !exists, nil
}

func (r *DedupRepository) MarkProcessed(ctx context.Context, record models.DedupRecord) (bool, error) {
	if record.EventID == "" || record.WorkflowID == "" {
		return false, persistence.ErrInvalidIdentifier
	}

	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now().UTC()
	}

	var eventTime sql.NullTime
	if !record.EventTime.IsZero() {
		eventTime = sql.NullTime{Time: record.EventTime, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, workflow_id, processed_at, sender, subject, event_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, workflow_id) DO NOTHING
	`,
		record.EventID,
		record.WorkflowID,
		record.ProcessedAt,
		record.Sender,
		record.Subject,
		eventTime,
	)
	if err != nil {
		return false, persistence.NewDedupError("MarkProcessed", record.EventID, record.WorkflowID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewDedupError("MarkProcessed", record.EventID, record.WorkflowID, err)
	}

	return inserted == 1, nil
}

func (r *DedupRepository) Prune(ctx context.Context, before time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM processed_events WHERE processed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune processed events: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.DebugContext(ctx, "pruned processed events", "removed", removed, "before", before)

	return int(removed), nil
}
