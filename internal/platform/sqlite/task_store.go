package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/platform/logger"
	"github.com/phrazzld/imagetask-api/internal/store"
)

const taskColumns = `id, status, price, source_reference, images, created_at, updated_at`

// TaskStore implements store.TaskStore on SQLite.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskStore creates a TaskStore on a database handle or transaction.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "sqlite_task_store")),
	}
}

var _ store.TaskStore = (*TaskStore)(nil)

// WithTx returns a TaskStore bound to tx.
func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx, logger: s.logger}
}

// Ping verifies the database file is readable.
func (s *TaskStore) Ping(ctx context.Context) error {
	if db, ok := s.db.(*sql.DB); ok {
		return db.PingContext(ctx)
	}
	return nil
}

// Create implements store.TaskStore.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if task == nil {
		return nil, store.NewStoreError("task", "create", "task is nil", store.ErrInvalidEntity)
	}
	if err := task.Validate(); err != nil {
		return nil, store.NewStoreError("task", "create", "validation failed", err)
	}

	stored := *task
	stored.ID = uuid.NewString()
	stored.Images = copyImages(task.Images)
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	images, err := json.Marshal(stored.Images)
	if err != nil {
		return nil, store.NewStoreError("task", "create", "failed to encode images", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, status, price, source_reference, images, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, stored.ID, string(stored.Status), stored.Price, stored.SourceReference, string(images),
		stored.CreatedAt, stored.UpdatedAt)
	if err != nil {
		log.Error("failed to create task", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "create", "insert failed", MapError(err, nil))
	}

	log.Debug("task created", slog.String("task_id", stored.ID))
	return &stored, nil
}

// Update implements store.TaskStore. The read and write share one
// transaction, and SQLite's single writer serializes updates.
func (s *TaskStore) Update(ctx context.Context, id string, task *domain.Task) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if task == nil {
		return nil, store.NewStoreError("task", "update", "task is nil", store.ErrInvalidEntity)
	}

	var updated *domain.Task
	err := s.inTx(ctx, func(ctx context.Context, db store.DBTX) error {
		existing, err := scanTask(db.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
		if err != nil {
			return MapError(err, store.ErrTaskNotFound)
		}
		if err := domain.CheckTransition(existing.Status, task.Status); err != nil {
			return store.NewStoreError("task", "update", "status change rejected", err)
		}

		existing.Status = task.Status
		existing.Images = copyImages(task.Images)
		if err := existing.Validate(); err != nil {
			return store.NewStoreError("task", "update", "validation failed", err)
		}
		existing.UpdatedAt = time.Now().UTC()

		images, err := json.Marshal(existing.Images)
		if err != nil {
			return store.NewStoreError("task", "update", "failed to encode images", err)
		}

		if _, err := db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, images = ?, updated_at = ? WHERE id = ?`,
			string(existing.Status), string(images), existing.UpdatedAt, id); err != nil {
			return store.NewStoreError("task", "update", "update failed", MapError(err, nil))
		}

		updated = existing
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			log.Error("failed to update task",
				slog.String("task_id", id),
				slog.String("error", err.Error()))
		}
		return nil, err
	}

	log.Debug("task updated",
		slog.String("task_id", id),
		slog.String("status", string(updated.Status)))
	return updated, nil
}

// FindByID implements store.TaskStore.
func (s *TaskStore) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, MapError(err, store.ErrTaskNotFound)
	}
	return task, nil
}

// FindByStatus implements store.TaskStore.
func (s *TaskStore) FindByStatus(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = ? ORDER BY rowid ASC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return tasks, nil
}

func (s *TaskStore) inTx(ctx context.Context, fn func(ctx context.Context, db store.DBTX) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return fn(ctx, s.db)
	}
	return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task   domain.Task
		status string
		images string
	)
	if err := row.Scan(
		&task.ID,
		&status,
		&task.Price,
		&task.SourceReference,
		&images,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.Images = []domain.TaskImage{}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &task.Images); err != nil {
			return nil, fmt.Errorf("decode task images: %w", err)
		}
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return &task, nil
}

func copyImages(images []domain.TaskImage) []domain.TaskImage {
	return append([]domain.TaskImage{}, images...)
}
