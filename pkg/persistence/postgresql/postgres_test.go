package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"execution_history", "processed_events", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("tripwire_test"),
			postgres.WithUsername("tripwire"),
			postgres.WithPassword("tripwire"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflows", "processed_events", "execution_history", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestNewPersistence_SaveAndRetrieveWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := &models.Workflow{
		Name:    "Invoices to chat",
		Owner:   "u1",
		Enabled: true,
		Triggers: []models.Trigger{
			{ID: "t1", Kind: models.TriggerKindFilteredEmail, UserID: "u1", Email: &models.EmailFilter{Subject: "invoice"}},
		},
		Actions: []models.Action{
			{ID: "a1", Type: models.ActionSendChat, Configuration: map[string]any{"text": "{{email_subject}}"}},
		},
		Variables: map[string]string{"team": "finance"},
	}

	err := p.SaveWorkflow(ctx, workflow)
	require.NoError(t, err)
	assert.NotEmpty(t, workflow.ID)

	retrieved, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, retrieved.Name)
	assert.True(t, retrieved.Enabled)
	require.Len(t, retrieved.Triggers, 1)
	assert.Equal(t, "invoice", retrieved.Triggers[0].Email.Subject)
	assert.Equal(t, "finance", retrieved.Variables["team"])

	workflow.Enabled = false
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	all, err := p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Enabled)

	require.NoError(t, p.DeleteWorkflow(ctx, workflow.ID))

	_, err = p.WorkflowByID(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestDedupRepository_AtMostOnce(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.DedupRepository()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			written, err := repo.MarkProcessed(ctx, models.DedupRecord{EventID: "e1", WorkflowID: "wf-1", Subject: "Invoice"})
			assert.NoError(t, err)

			if written {
				winners.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())

	isNew, err := repo.IsNew(ctx, "e1", "wf-1")
	require.NoError(t, err)
	assert.False(t, isNew)

	isNew, err = repo.IsNew(ctx, "e1", "wf-2")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestDedupRepository_Prune(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.DedupRepository()
	now := time.Now().UTC()

	_, err := repo.MarkProcessed(ctx, models.DedupRecord{EventID: "old", WorkflowID: "wf", ProcessedAt: now.Add(-10 * 24 * time.Hour)})
	require.NoError(t, err)
	_, err = repo.MarkProcessed(ctx, models.DedupRecord{EventID: "new", WorkflowID: "wf", ProcessedAt: now})
	require.NoError(t, err)

	removed, err := repo.Prune(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestExecutionHistoryRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.ExecutionHistoryRepository()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	_, found, err := repo.LastExecutionTimestamp(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Record(ctx, &models.ExecutionResult{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		TriggerKind: models.TriggerKindScheduled,
		Success:     true,
		ActionsRun:  []string{"a1"},
		Variables:   map[string]string{"x": "1"},
		Duration:    1500 * time.Millisecond,
		Timestamp:   base,
	}))
	require.NoError(t, repo.Record(ctx, &models.ExecutionResult{
		ExecutionID: "exec-2",
		WorkflowID:  "wf-1",
		Timestamp:   base.Add(time.Hour),
	}))

	last, found, err := repo.LastExecutionTimestamp(ctx, "wf-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, last.Equal(base.Add(time.Hour)))

	results, err := repo.ListByWorkflow(ctx, "wf-1", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exec-2", results[0].ExecutionID)
	assert.Equal(t, "exec-1", results[1].ExecutionID)
	assert.Equal(t, 1500*time.Millisecond, results[1].Duration)
	assert.Equal(t, "1", results[1].Variables["x"])
}
