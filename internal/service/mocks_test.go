package service_test

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/cascade"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockTaskStore mocks the store.TaskStore interface. WithTx returns the mock itself.
type MockTaskStore struct {
	mock.Mock
}

var _ store.TaskStore = (*MockTaskStore)(nil)

func (m *MockTaskStore) SelectForUpdate(
	ctx context.Context,
	ownerID uuid.UUID,
	minPriority int,
	excludeID uuid.UUID,
) ([]cascade.Candidate, error) {
	args := m.Called(ctx, ownerID, minPriority, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cascade.Candidate), args.Error(1)
}

func (m *MockTaskStore) BatchUpdatePriority(ctx context.Context, changes []cascade.Change) error {
	return m.Called(ctx, changes).Error(0)
}

func (m *MockTaskStore) LockOwner(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	args := m.Called(ctx, task)
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskStore) Update(ctx context.Context, task *domain.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockTaskStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Task), args.Error(1)
}

func (m *MockTaskStore) Summary(ctx context.Context, userID uuid.UUID) (domain.TaskSummary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.TaskSummary), args.Error(1)
}

func (m *MockTaskStore) CountPendingByStatus(ctx context.Context, userID uuid.UUID) ([]domain.StatusCount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StatusCount), args.Error(1)
}

func (m *MockTaskStore) AppendHistory(ctx context.Context, change *domain.StatusChange) error {
	return m.Called(ctx, change).Error(0)
}

func (m *MockTaskStore) ListHistory(ctx context.Context, taskID uuid.UUID) ([]*domain.StatusChange, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StatusChange), args.Error(1)
}

func (m *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}
