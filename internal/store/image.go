package store

import (
	"context"

	"github.com/phrazzld/imagetask-api/internal/domain"
)

// ImageStore defines the interface for image variant persistence.
type ImageStore interface {
	// Save creates the variant when it has no ID and updates it otherwise.
	// Returns ErrImageNotFound when updating an ID that does not exist.
	Save(ctx context.Context, image *domain.ImageVariant) (*domain.ImageVariant, error)

	// FindByTaskID retrieves every variant recorded for a task, oldest first.
	// Returns an empty slice if there are none.
	FindByTaskID(ctx context.Context, taskID string) ([]*domain.ImageVariant, error)

	// FindByHash retrieves the most recent variant generated from the given content hash.
	// Returns ErrImageNotFound if none exists.
	FindByHash(ctx context.Context, hash string) (*domain.ImageVariant, error)
}
