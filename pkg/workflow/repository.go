package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Repository validates workflows before they reach persistence.
type Repository struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
}

func NewRepository(persistence persistence.Persistence, registry *registry.Registry) *Repository {
	return &Repository{
		persistence: persistence,
		registry:    registry,
		validate:    validator.New(),
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.Workflows(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.persistence.WorkflowByID(ctx, id)
}

// Check runs struct validation, the model invariants and, when a registry is
// set, verifies every trigger and action has something to serve it.
func (r *Repository) Check(workflow *models.Workflow) error {
	if err := r.validate.Struct(workflow); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidWorkflow, err)
	}

	if err := workflow.Validate(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidWorkflow, err)
	}

	if r.registry == nil {
		return nil
	}

	if problems := r.registry.CheckWorkflow(workflow); len(problems) > 0 {
		return fmt.Errorf("%w: %w", models.ErrInvalidWorkflow, problems[0])
	}

	return nil
}

// Save creates or replaces the workflow with the given id, keeping its creation time.
func (r *Repository) Save(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	if id == "" {
		id = uuid.New().String()
	}

	workflow.ID = id

	if err := r.Check(workflow); err != nil {
		return nil, err
	}

	existing, err := r.persistence.WorkflowByID(ctx, id)

	switch {
	case err == nil:
		workflow.CreatedAt = existing.CreatedAt
	case persistence.IsWorkflowNotFound(err):
		workflow.CreatedAt = time.Time{}
	default:
		return nil, err
	}

	if err := r.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.persistence.WorkflowByID(ctx, id); err != nil {
		return err
	}

	return r.persistence.DeleteWorkflow(ctx, id)
}

func (r *Repository) Executions(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionResult, error) {
	if _, err := r.persistence.WorkflowByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return r.persistence.ExecutionHistoryRepository().ListByWorkflow(ctx, workflowID, limit)
}
