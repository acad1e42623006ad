package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
)

// DedupRepository stores one file per (event, workflow) pair under <root>/dedup.
// Records are created with O_EXCL, so the file system arbitrates concurrent writers.
type DedupRepository struct {
	root string
}

func NewDedupRepository(root string) *DedupRepository {
	return &DedupRepository{root: filepath.Join(root, "dedup")}
}

// recordPath hashes the pair since event IDs come from external providers.
func (r *DedupRepository) recordPath(eventID, workflowID string) string {
	sum := sha256.Sum256([]byte(workflowID + "\x00" + eventID))

	return filepath.Join(r.root, hex.EncodeToString(sum[:])+".json")
}

func (r *DedupRepository) IsNew(_ context.Context, eventID, workflowID string) (bool, error) {
	_, err := os.Stat(r.recordPath(eventID, workflowID))
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to stat dedup record: %w", err)
	}

	return false, nil
}

func (r *DedupRepository) MarkProcessed(_ context.Context, record models.DedupRecord) (bool, error) {
	if record.EventID == "" || record.WorkflowID == "" {
		return false, persistence.ErrInvalidIdentifier
	}

	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now().UTC()
	}

	if err := os.MkdirAll(r.root, 0750); err != nil {
		return false, persistence.NewDedupError("MarkProcessed", record.EventID, record.WorkflowID, err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return false, persistence.NewDedupError("MarkProcessed", record.EventID, record.WorkflowID, err)
	}

	file, err := os.OpenFile(r.recordPath(record.EventID, record.WorkflowID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}

	if err != nil {
		return false, persistence.NewDedupError("MarkProcessed", record.EventID, record.WorkflowID, err)
	}

	_, writeErr := file.Write(data)
	syncErr := file.Sync()
	closeErr := file.Close()

	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		_ = os.Remove(file.Name())

		return false, persistence.NewDedupError("MarkProcessed", record.EventID, record.WorkflowID, err)
	}

	return true, nil
}

func (r *DedupRepository) Prune(_ context.Context, before time.Time) (int, error) {
	entries, err := os.ReadDir(r.root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to list dedup records: %w", err)
	}

	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		filePath := filepath.Join(r.root, entry.Name())

		data, err := os.ReadFile(filePath)
		if err != nil {
			continue
		}

		var record models.DedupRecord
		if err := json.Unmarshal(data, &record); err != nil || !record.ProcessedAt.Before(before) {
			continue
		}

		if err := os.Remove(filePath); err == nil {
			removed++
		}
	}

	return removed, nil
}
