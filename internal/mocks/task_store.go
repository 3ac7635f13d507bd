package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/store"
	"github.com/phrazzld/imagetask-api/internal/store/memory"
)

// MockTaskStore implements store.TaskStore. Each nil function field falls
// back to an in-memory store, so tests only override what they exercise.
type MockTaskStore struct {
	CreateFn       func(ctx context.Context, task *domain.Task) (*domain.Task, error)
	UpdateFn       func(ctx context.Context, id string, task *domain.Task) (*domain.Task, error)
	FindByIDFn     func(ctx context.Context, id string) (*domain.Task, error)
	FindByStatusFn func(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error)

	once     sync.Once
	fallback *memory.TaskStore

	mu          sync.Mutex
	UpdateCalls []domain.TaskStatus
}

var _ store.TaskStore = (*MockTaskStore)(nil)

func (m *MockTaskStore) backing() *memory.TaskStore {
	m.once.Do(func() { m.fallback = memory.NewTaskStore(nil) })
	return m.fallback
}

// Create implements store.TaskStore.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	return m.backing().Create(ctx, task)
}

// Update implements store.TaskStore and records the requested status.
func (m *MockTaskStore) Update(ctx context.Context, id string, task *domain.Task) (*domain.Task, error) {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, task.Status)
	m.mu.Unlock()

	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, task)
	}
	return m.backing().Update(ctx, id, task)
}

// FindByID implements store.TaskStore.
func (m *MockTaskStore) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	return m.backing().FindByID(ctx, id)
}

// FindByStatus implements store.TaskStore.
func (m *MockTaskStore) FindByStatus(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error) {
	if m.FindByStatusFn != nil {
		return m.FindByStatusFn(ctx, status, limit)
	}
	return m.backing().FindByStatus(ctx, status, limit)
}

// Updates returns the statuses passed to Update, in call order.
func (m *MockTaskStore) Updates() []domain.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TaskStatus(nil), m.UpdateCalls...)
}
