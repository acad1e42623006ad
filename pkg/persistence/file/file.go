// Package file provides file-based persistence for workflows, dedup records and execution history.
package file

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	dedupRepo    *DedupRepository
	historyRepo  *ExecutionHistoryRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
		dedupRepo:    NewDedupRepository(cleanRoot),
		historyRepo:  NewExecutionHistoryRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); errors.Is(err, os.ErrNotExist) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return fp.workflowRepo.GetAll(ctx)
}

func (fp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

func (fp *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return fp.workflowRepo.Save(ctx, workflow)
}

func (fp *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return fp.workflowRepo.Delete(ctx, id)
}

func (fp *Persistence) DedupRepository() persistence.DedupRepository {
	return fp.dedupRepo
}

func (fp *Persistence) ExecutionHistoryRepository() persistence.ExecutionHistoryRepository {
	return fp.historyRepo
}

// validateID rejects identifiers that would escape the storage directory.
func validateID(id string) error {
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return persistence.ErrInvalidIdentifier
	}

	return nil
}
