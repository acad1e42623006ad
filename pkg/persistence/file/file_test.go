package file

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	persistence := NewPersistence("/tmp/test")
	fp := persistence.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)

	persistence = NewPersistence("file:///tmp/test")
	fp = persistence.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_Close(t *testing.T) {
	persistence := NewPersistence("./test-data")
	err := persistence.Close(t.Context())
	assert.NoError(t, err)
}

func TestPersistence_SaveWorkflow(t *testing.T) {
	testDir := t.TempDir()

	persistence := NewPersistence(testDir)

	workflow := &models.Workflow{
		ID:      "test-workflow",
		Name:    "Test Workflow",
		Owner:   "u1",
		Enabled: true,
		Triggers: []models.Trigger{
			{ID: "t1", Kind: models.TriggerKindNewEmail, UserID: "u1", Email: &models.EmailFilter{UnreadOnly: true}},
		},
		Actions: []models.Action{
			{ID: "a1", Type: models.ActionSendChat, Configuration: map[string]any{"text": "New mail: {{email_subject}}"}},
		},
	}

	err := persistence.SaveWorkflow(t.Context(), workflow)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(testDir, "workflows", "test-workflow.json"))
	assert.False(t, workflow.CreatedAt.IsZero())
	assert.False(t, workflow.UpdatedAt.IsZero())

	fetched, err := persistence.WorkflowByID(t.Context(), "test-workflow")
	require.NoError(t, err)
	require.Len(t, fetched.Triggers, 1)
	assert.True(t, fetched.Triggers[0].Email.UnreadOnly)
	assert.Equal(t, "New mail: {{email_subject}}", fetched.Actions[0].Configuration["text"])
}

func TestPersistence_SaveWorkflow_UpdatesTimestamp(t *testing.T) {
	persistence := NewPersistence(t.TempDir())

	workflow := &models.Workflow{
		ID:        "update-workflow",
		Name:      "Update Test Workflow",
		CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	err := persistence.SaveWorkflow(t.Context(), workflow)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), workflow.CreatedAt)
	assert.True(t, workflow.UpdatedAt.After(workflow.CreatedAt))
}

func TestPersistence_WorkflowByID_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.WorkflowByID(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = p.WorkflowByID(t.Context(), "../etc/passwd")
	assert.ErrorIs(t, err, persistence.ErrInvalidIdentifier)
}

func TestPersistence_WorkflowsAndDelete(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	workflows, err := p.Workflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, workflows)

	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{ID: "b", Name: "Second"}))
	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{ID: "a", Name: "First"}))

	workflows, err = p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "a", workflows[0].ID)

	require.NoError(t, p.DeleteWorkflow(ctx, "a"))
	require.NoError(t, p.DeleteWorkflow(ctx, "a"), "deleting twice is not an error")

	workflows, err = p.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, workflows, 1)
}

func TestDedupRepository(t *testing.T) {
	repo := NewDedupRepository(t.TempDir())
	ctx := t.Context()

	isNew, err := repo.IsNew(ctx, "msg/with/slashes", "wf-1")
	require.NoError(t, err)
	assert.True(t, isNew)

	written, err := repo.MarkProcessed(ctx, models.DedupRecord{EventID: "msg/with/slashes", WorkflowID: "wf-1", Sender: "a@b.c"})
	require.NoError(t, err)
	assert.True(t, written)

	written, err = repo.MarkProcessed(ctx, models.DedupRecord{EventID: "msg/with/slashes", WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.False(t, written)

	isNew, err = repo.IsNew(ctx, "msg/with/slashes", "wf-1")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestDedupRepository_ConcurrentMarkProcessed(t *testing.T) {
	repo := NewDedupRepository(t.TempDir())

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)

	for range 16 {
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
}

func TestDedupRepository_Prune(t *testing.T) {
	repo := NewDedupRepository(t.TempDir())
	ctx := t.Context()
	now := time.Now().UTC()

	removed, err := repo.Prune(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, removed, "missing directory prunes nothing")

	_, err = repo.MarkProcessed(ctx, models.DedupRecord{EventID: "old", WorkflowID: "wf", ProcessedAt: now.Add(-8 * 24 * time.Hour)})
	require.NoError(t, err)
	_, err = repo.MarkProcessed(ctx, models.DedupRecord{EventID: "fresh", WorkflowID: "wf", ProcessedAt: now})
	require.NoError(t, err)

	removed, err = repo.Prune(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	isNew, err := repo.IsNew(ctx, "old", "wf")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestExecutionHistoryRepository(t *testing.T) {
	repo := NewExecutionHistoryRepository(t.TempDir())
	ctx := t.Context()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	_, found, err := repo.LastExecutionTimestamp(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, found)

	for i, id := range []string{"exec-1", "exec-2", "exec-3"} {
		require.NoError(t, repo.Record(ctx, &models.ExecutionResult{
			ExecutionID: id,
			WorkflowID:  "wf-1",
			Success:     true,
			ActionsRun:  []string{"a1"},
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	last, found, err := repo.LastExecutionTimestamp(ctx, "wf-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, last.Equal(base.Add(2*time.Minute)))

	results, err := repo.ListByWorkflow(ctx, "wf-1", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exec-3", results[0].ExecutionID)
	assert.Equal(t, []string{"a1"}, results[0].ActionsRun)
}
