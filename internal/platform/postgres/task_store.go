package postgres

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

// TaskStore implements store.TaskStore on PostgreSQL.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskStore creates a TaskStore on a database handle or transaction.
// If logger is nil, a default logger will be used.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*TaskStore)(nil)

// WithTx returns a TaskStore bound to tx, sharing the logger.
func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx, logger: s.logger}
}

// Ping verifies the database is reachable. It is a no-op inside a transaction.
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
		log.Warn("task validation failed during create", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "create", "validation failed", err)
	}

	images, err := json.Marshal(nonNilImages(task.Images))
	if err != nil {
		return nil, store.NewStoreError("task", "create", "failed to encode images", err)
	}

	now := time.Now().UTC()
	stored := *task
	stored.ID = uuid.NewString()
	stored.Images = nonNilImages(task.Images)
	stored.CreatedAt = now
	stored.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, status, price, source_reference, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, stored.ID, stored.Status, stored.Price, stored.SourceReference, string(images), now, now)
	if err != nil {
		log.Error("failed to create task", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "create", "insert failed", MapError(err, nil))
	}

	log.Debug("task created",
		slog.String("task_id", stored.ID),
		slog.String("status", string(stored.Status)))
	return &stored, nil
}

// Update implements store.TaskStore. The row is locked for the duration of
// the read-modify-write so concurrent updates to one task serialize.
func (s *TaskStore) Update(ctx context.Context, id string, task *domain.Task) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if task == nil {
		return nil, store.NewStoreError("task", "update", "task is nil", store.ErrInvalidEntity)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrTaskNotFound
	}

	var updated *domain.Task
	err := s.inTx(ctx, func(ctx context.Context, db store.DBTX) error {
		existing, err := scanTask(db.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return MapError(err, store.ErrTaskNotFound)
		}
		if err := domain.CheckTransition(existing.Status, task.Status); err != nil {
			return store.NewStoreError("task", "update", "status change rejected", err)
		}

		existing.Status = task.Status
		existing.Images = nonNilImages(task.Images)
		if err := existing.Validate(); err != nil {
			return store.NewStoreError("task", "update", "validation failed", err)
		}

		images, err := json.Marshal(existing.Images)
		if err != nil {
			return store.NewStoreError("task", "update", "failed to encode images", err)
		}
		existing.UpdatedAt = time.Now().UTC()

		result, err := db.ExecContext(ctx, `
			UPDATE tasks SET status = $1, images = $2, updated_at = $3
			WHERE id = $4
		`, existing.Status, string(images), existing.UpdatedAt, id)
		if err != nil {
			return store.NewStoreError("task", "update", "update failed", MapError(err, nil))
		}
		if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
			return err
		}

		updated = existing
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.Debug("task not found for update", slog.String("task_id", id))
		} else {
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
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrTaskNotFound
	}

	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, MapError(err, store.ErrTaskNotFound)
	}
	return task, nil
}

// FindByStatus implements store.TaskStore.
func (s *TaskStore) FindByStatus(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = $1 ORDER BY seq ASC`
	args := []any{status}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status",
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query tasks by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

// inTx runs fn in a new transaction, or directly when the store is already
// bound to one.
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
		images []byte
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
	if len(images) > 0 {
		if err := json.Unmarshal(images, &task.Images); err != nil {
			return nil, fmt.Errorf("failed to decode task images: %w", err)
		}
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return &task, nil
}

func nonNilImages(images []domain.TaskImage) []domain.TaskImage {
	if images == nil {
		return []domain.TaskImage{}
	}
	return append([]domain.TaskImage{}, images...)
}
