package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/platform/logger"
	"github.com/phrazzld/imagetask-api/internal/store"
)

const imageColumns = `id, task_id, resolution, path, content_hash, created_at`

// ImageStore implements store.ImageStore on PostgreSQL.
type ImageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewImageStore creates an ImageStore on a database handle or transaction.
// If logger is nil, a default logger will be used.
func NewImageStore(db store.DBTX, logger *slog.Logger) *ImageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageStore{
		db:     db,
		logger: logger.With(slog.String("component", "image_store")),
	}
}

var _ store.ImageStore = (*ImageStore)(nil)

// WithTx returns an ImageStore bound to tx, sharing the logger.
func (s *ImageStore) WithTx(tx *sql.Tx) *ImageStore {
	return &ImageStore{db: tx, logger: s.logger}
}

// Save implements store.ImageStore.
// A variant referencing a task that does not exist yields store.ErrInvalidEntity.
func (s *ImageStore) Save(ctx context.Context, image *domain.ImageVariant) (*domain.ImageVariant, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if image == nil {
		return nil, store.NewStoreError("image", "save", "image is nil", store.ErrInvalidEntity)
	}
	if err := image.Validate(); err != nil {
		return nil, store.NewStoreError("image", "save", "validation failed", err)
	}

	stored := *image
	if stored.ID == "" {
		stored.ID = uuid.NewString()
		stored.CreatedAt = time.Now().UTC()

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO image_variants (id, task_id, resolution, path, content_hash, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, stored.ID, stored.TaskID, stored.Resolution, stored.Path, stored.ContentHash, stored.CreatedAt)
		if err != nil {
			log.Error("failed to insert image variant",
				slog.String("task_id", stored.TaskID),
				slog.String("error", err.Error()))
			return nil, store.NewStoreError("image", "create", "insert failed", MapError(err, nil))
		}

		log.Debug("image variant created",
			slog.String("image_id", stored.ID),
			slog.String("task_id", stored.TaskID),
			slog.String("resolution", stored.Resolution))
		return &stored, nil
	}

	if _, err := uuid.Parse(stored.ID); err != nil {
		return nil, store.ErrImageNotFound
	}

	err := s.db.QueryRowContext(ctx, `
		UPDATE image_variants
		SET task_id = $1, resolution = $2, path = $3, content_hash = $4
		WHERE id = $5
		RETURNING created_at
	`, stored.TaskID, stored.Resolution, stored.Path, stored.ContentHash, stored.ID).Scan(&stored.CreatedAt)
	if err != nil {
		return nil, MapError(err, store.ErrImageNotFound)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	return &stored, nil
}

// FindByTaskID implements store.ImageStore.
func (s *ImageStore) FindByTaskID(ctx context.Context, taskID string) ([]*domain.ImageVariant, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return []*domain.ImageVariant{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM image_variants WHERE task_id = $1 ORDER BY seq ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query image variants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	images := make([]*domain.ImageVariant, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image variant: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image variants: %w", err)
	}
	return images, nil
}

// FindByHash implements store.ImageStore.
func (s *ImageStore) FindByHash(ctx context.Context, hash string) (*domain.ImageVariant, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM image_variants WHERE content_hash = $1 ORDER BY seq DESC LIMIT 1`, hash))
	if err != nil {
		return nil, MapError(err, store.ErrImageNotFound)
	}
	return img, nil
}

func scanImage(row rowScanner) (*domain.ImageVariant, error) {
	var img domain.ImageVariant
	if err := row.Scan(
		&img.ID,
		&img.TaskID,
		&img.Resolution,
		&img.Path,
		&img.ContentHash,
		&img.CreatedAt,
	); err != nil {
		return nil, err
	}
	img.CreatedAt = img.CreatedAt.UTC()
	return &img, nil
}
