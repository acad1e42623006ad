package mocks

import (
	"context"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	dedup   *MockDedupRepository
	history *MockExecutionHistoryRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		dedup:   &MockDedupRepository{},
		history: &MockExecutionHistoryRepository{},
	}
}

func (m *MockPersistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockPersistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockPersistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockPersistence) DeleteWorkflow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) GetMockDedupRepository() *MockDedupRepository {
	return m.dedup
}

func (m *MockPersistence) DedupRepository() persistence.DedupRepository {
	return m.dedup
}

func (m *MockPersistence) GetMockExecutionHistoryRepository() *MockExecutionHistoryRepository {
	return m.history
}

func (m *MockPersistence) ExecutionHistoryRepository() persistence.ExecutionHistoryRepository {
	return m.history
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockDedupRepository is a mock implementation of persistence.DedupRepository interface.
type MockDedupRepository struct {
	mock.Mock
}

func (m *MockDedupRepository) IsNew(ctx context.Context, eventID, workflowID string) (bool, error) {
	args := m.Called(ctx, eventID, workflowID)

	return args.Bool(0), args.Error(1)
}

func (m *MockDedupRepository) MarkProcessed(ctx context.Context, record models.DedupRecord) (bool, error) {
	args := m.Called(ctx, record)

	return args.Bool(0), args.Error(1)
}

func (m *MockDedupRepository) Prune(ctx context.Context, before time.Time) (int, error) {
	args := m.Called(ctx, before)

	return args.Int(0), args.Error(1)
}

// MockExecutionHistoryRepository is a mock implementation of persistence.ExecutionHistoryRepository interface.
type MockExecutionHistoryRepository struct {
	mock.Mock
}

func (m *MockExecutionHistoryRepository) Record(ctx context.Context, result *models.ExecutionResult) error {
	args := m.Called(ctx, result)

	return args.Error(0)
}

func (m *MockExecutionHistoryRepository) LastExecutionTimestamp(ctx context.Context, workflowID string) (time.Time, bool, error) {
	args := m.Called(ctx, workflowID)

	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockExecutionHistoryRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionResult, error) {
	args := m.Called(ctx, workflowID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionResult), args.Error(1)
}
