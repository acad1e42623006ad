// Package redisstore provides a Redis-backed dedup store for multi-process deployments.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tripwire:dedup:"

// DedupRepository claims (event, workflow) pairs with SET NX. Keys expire after
// the retention window; Prune handles records written with a longer TTL.
type DedupRepository struct {
	client    redis.UniversalClient
	retention time.Duration
	logger    *slog.Logger
}

func NewDedupRepository(client redis.UniversalClient, retention time.Duration, logger *slog.Logger) *DedupRepository {
	return &DedupRepository{client: client, retention: retention, logger: logger}
}

// NewClient parses a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return redis.NewClient(opts), nil
}

func key(eventID, workflowID string) string {
	return keyPrefix + workflowID + ":" + eventID
}

func (r *DedupRepository) IsNew(ctx context.Context, eventID, workflowID string) (bool, error) {
	count, err := r.client.Exists(ctx, key(eventID, workflowID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedup key: %w", err)
	}

	return count == 0, nil
}

func (r *DedupRepository) MarkProcessed(ctx context.Context, record models.DedupRecord) (bool, error) {
	if record.EventID == "" || record.WorkflowID == "" {
		return false, persistence.ErrInvalidIdentifier
	}

	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now().UTC()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return false, persistence.NewDedupError("MarkProcessed", record.EventID, record.WorkflowID, err)
	}

	written, err := r.client.SetNX(ctx, key(record.EventID, record.WorkflowID), data, r.retention).Result()
	if err != nil {
		return false, persistence.NewDedupError("MarkProcessed", record.EventID, record.WorkflowID, err)
	}

	return written, nil
}

func (r *DedupRepository) Prune(ctx context.Context, before time.Time) (int, error) {
	removed := 0

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			return removed, fmt.Errorf("failed to read dedup key: %w", err)
		}

		var record models.DedupRecord
		if err := json.Unmarshal(data, &record); err != nil {
			r.logger.WarnContext(ctx, "dropping undecodable dedup record", "key", iter.Val(), "error", err)
		} else if !record.ProcessedAt.Before(before) {
			continue
		}

		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete dedup key: %w", err)
		}

		removed++
	}

	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan dedup keys: %w", err)
	}

	return removed, nil
}
