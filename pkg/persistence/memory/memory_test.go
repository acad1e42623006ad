package memory

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_WorkflowRoundTrip(t *testing.T) {
	p := NewPersistence()
	ctx := t.Context()

	workflow := &models.Workflow{ID: "wf-1", Name: "Inbox", Owner: "u1", Enabled: true}
	require.NoError(t, p.SaveWorkflow(ctx, workflow))
	assert.False(t, workflow.CreatedAt.IsZero())

	loaded, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Inbox", loaded.Name)

	loaded.Name = "mutated"
	again, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Inbox", again.Name)

	require.NoError(t, p.DeleteWorkflow(ctx, "wf-1"))

	_, err = p.WorkflowByID(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestEnabledWorkflows(t *testing.T) {
	p := NewPersistence()
	ctx := t.Context()

	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{ID: "a", Enabled: true}))
	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{ID: "b"}))

	enabled, err := persistence.EnabledWorkflows(ctx, p)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "a", enabled[0].ID)
}

func TestDedupRepository_MarkProcessedOnce(t *testing.T) {
	repo := NewDedupRepository()
	ctx := t.Context()

	isNew, err := repo.IsNew(ctx, "e1", "wf-1")
	require.NoError(t, err)
	assert.True(t, isNew)

	written, err := repo.MarkProcessed(ctx, models.DedupRecord{EventID: "e1", WorkflowID: "wf-1", Subject: "first"})
	require.NoError(t, err)
	assert.True(t, written)

	written, err = repo.MarkProcessed(ctx, models.DedupRecord{EventID: "e1", WorkflowID: "wf-1", Subject: "second"})
	require.NoError(t, err)
	assert.False(t, written)

	isNew, err = repo.IsNew(ctx, "e1", "wf-2")
	require.NoError(t, err)
	assert.True(t, isNew, "dedup is scoped per workflow")
}

func TestDedupRepository_ConcurrentRaceHasOneWinner(t *testing.T) {
	repo := NewDedupRepository()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)

	for range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			written, err := repo.MarkProcessed(t.Context(), models.DedupRecord{EventID: "e1", WorkflowID: "wf-1"})
			assert.NoError(t, err)

			if written {
				winners.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, 1, repo.Len())
}

func TestDedupRepository_Prune(t *testing.T) {
	repo := NewDedupRepository()
	ctx := t.Context()
	now := time.Now().UTC()

	_, err := repo.MarkProcessed(ctx, models.DedupRecord{EventID: "old", WorkflowID: "wf", ProcessedAt: now.Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = repo.MarkProcessed(ctx, models.DedupRecord{EventID: "new", WorkflowID: "wf", ProcessedAt: now})
	require.NoError(t, err)

	removed, err := repo.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	isNew, err := repo.IsNew(ctx, "new", "wf")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestDedupRepository_RejectsEmptyIdentifiers(t *testing.T) {
	_, err := NewDedupRepository().MarkProcessed(t.Context(), models.DedupRecord{WorkflowID: "wf"})
	assert.ErrorIs(t, err, persistence.ErrInvalidIdentifier)
}

func TestExecutionHistoryRepository(t *testing.T) {
	repo := NewExecutionHistoryRepository()
	ctx := t.Context()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, found, err := repo.LastExecutionTimestamp(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, found)

	for i := range 3 {
		require.NoError(t, repo.Record(ctx, &models.ExecutionResult{
			ExecutionID: string(rune('a' + i)),
			WorkflowID:  "wf-1",
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	last, found, err := repo.LastExecutionTimestamp(ctx, "wf-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, base.Add(2*time.Hour), last)

	results, err := repo.ListByWorkflow(ctx, "wf-1", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c", results[0].ExecutionID)
}
