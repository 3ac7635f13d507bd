package sqlite

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

// ImageStore implements store.ImageStore on SQLite.
type ImageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewImageStore creates an ImageStore on a database handle or transaction.
func NewImageStore(db store.DBTX, logger *slog.Logger) *ImageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageStore{
		db:     db,
		logger: logger.With(slog.String("component", "sqlite_image_store")),
	}
}

var _ store.ImageStore = (*ImageStore)(nil)

// WithTx returns an ImageStore bound to tx.
func (s *ImageStore) WithTx(tx *sql.Tx) *ImageStore {
	return &ImageStore{db: tx, logger: s.logger}
}

// Save implements store.ImageStore.
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

		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO image_variants (id, task_id, resolution, path, content_hash, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, stored.ID, stored.TaskID, stored.Resolution, stored.Path, stored.ContentHash, stored.CreatedAt); err != nil {
			log.Error("failed to insert image variant",
				slog.String("task_id", stored.TaskID),
				slog.String("error", err.Error()))
			return nil, store.NewStoreError("image", "create", "insert failed", MapError(err, nil))
		}
		return &stored, nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE image_variants SET task_id = ?, resolution = ?, path = ?, content_hash = ?
		WHERE id = ?
	`, stored.TaskID, stored.Resolution, stored.Path, stored.ContentHash, stored.ID)
	if err != nil {
		return nil, store.NewStoreError("image", "update", "update failed", MapError(err, nil))
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, store.ErrImageNotFound
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM image_variants WHERE id = ?`, stored.ID).Scan(&stored.CreatedAt); err != nil {
		return nil, MapError(err, store.ErrImageNotFound)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	return &stored, nil
}

// FindByTaskID implements store.ImageStore.
func (s *ImageStore) FindByTaskID(ctx context.Context, taskID string) ([]*domain.ImageVariant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM image_variants WHERE task_id = ? ORDER BY rowid ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query image variants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	images := make([]*domain.ImageVariant, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image variant: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image variants: %w", err)
	}
	return images, nil
}

// FindByHash implements store.ImageStore.
func (s *ImageStore) FindByHash(ctx context.Context, hash string) (*domain.ImageVariant, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM image_variants WHERE content_hash = ? ORDER BY rowid DESC LIMIT 1`, hash))
	if err != nil {
		return nil, MapError(err, store.ErrImageNotFound)
	}
	return img, nil
}

func scanImage(row rowScanner) (*domain.ImageVariant, error) {
	var img domain.ImageVariant
	if err := row.Scan(&img.ID, &img.TaskID, &img.Resolution, &img.Path, &img.ContentHash, &img.CreatedAt); err != nil {
		return nil, err
	}
	img.CreatedAt = img.CreatedAt.UTC()
	return &img, nil
}
