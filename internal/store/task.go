package store

import (
	"context"

	"github.com/phrazzld/imagetask-api/internal/domain"
)

// TaskStore defines the interface for task persistence.
// Implementations serialize their own writes per record.
type TaskStore interface {
	// Create saves a new task, assigning its ID and timestamps.
	// Returns the stored copy; the argument is not modified.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)

	// Update persists the status and images of an existing task.
	// Price and source reference are immutable and never rewritten.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, id string, task *domain.Task) (*domain.Task, error)

	// FindByID retrieves a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	FindByID(ctx context.Context, id string) (*domain.Task, error)

	// FindByStatus retrieves up to limit tasks with the given status, oldest first.
	// A limit of zero or less returns every match.
	FindByStatus(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error)
}
