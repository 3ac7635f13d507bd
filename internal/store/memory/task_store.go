package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/store"
)

// TaskStore implements store.TaskStore on a map guarded by a RWMutex.
type TaskStore struct {
	mu     sync.RWMutex
	tasks  map[string]*domain.Task
	order  map[string]uint64 // insertion sequence
	seq    uint64
	logger *slog.Logger
	now    func() time.Time
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore(logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		tasks:  make(map[string]*domain.Task),
		order:  make(map[string]uint64),
		logger: logger.With(slog.String("component", "memory_task_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ store.TaskStore = (*TaskStore)(nil)

// Create implements store.TaskStore.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, store.NewStoreError("task", "create", "task is nil", store.ErrInvalidEntity)
	}
	if err := task.Validate(); err != nil {
		return nil, store.NewStoreError("task", "create", "validation failed", err)
	}

	stored := cloneTask(task)
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt

	s.mu.Lock()
	s.seq++
	s.tasks[stored.ID] = stored
	s.order[stored.ID] = s.seq
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "task created",
		slog.String("task_id", stored.ID),
		slog.String("status", string(stored.Status)))

	return cloneTask(stored), nil
}

// Update implements store.TaskStore.
func (s *TaskStore) Update(ctx context.Context, id string, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, store.NewStoreError("task", "update", "task is nil", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if err := domain.CheckTransition(existing.Status, task.Status); err != nil {
		return nil, store.NewStoreError("task", "update", "status change rejected", err)
	}

	updated := cloneTask(existing)
	updated.Status = task.Status
	updated.Images = append([]domain.TaskImage{}, task.Images...)
	if err := updated.Validate(); err != nil {
		return nil, store.NewStoreError("task", "update", "validation failed", err)
	}
	updated.UpdatedAt = s.now()
	s.tasks[id] = updated

	s.logger.DebugContext(ctx, "task updated",
		slog.String("task_id", id),
		slog.String("status", string(updated.Status)))

	return cloneTask(updated), nil
}

// FindByID implements store.TaskStore.
func (s *TaskStore) FindByID(_ context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// FindByStatus implements store.TaskStore.
func (s *TaskStore) FindByStatus(_ context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error) {
	s.mu.RLock()
	matches := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if t.Status == status {
			matches = append(matches, cloneTask(t))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return s.order[matches[i].ID] < s.order[matches[j].ID]
	})
	s.mu.RUnlock()

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Ping always succeeds; it lets the health check treat every backend alike.
func (s *TaskStore) Ping(context.Context) error {
	return nil
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	c.Images = append([]domain.TaskImage{}, t.Images...)
	return &c
}
