package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/store"
)

// ImageStore implements store.ImageStore. Insertion order is kept in a slice
// so lookups return oldest first without relying on clock resolution.
type ImageStore struct {
	mu     sync.RWMutex
	images []*domain.ImageVariant
	byID   map[string]int
	logger *slog.Logger
	now    func() time.Time
}

// NewImageStore creates an empty ImageStore.
func NewImageStore(logger *slog.Logger) *ImageStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageStore{
		byID:   make(map[string]int),
		logger: logger.With(slog.String("component", "memory_image_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ store.ImageStore = (*ImageStore)(nil)

// Save implements store.ImageStore.
func (s *ImageStore) Save(ctx context.Context, image *domain.ImageVariant) (*domain.ImageVariant, error) {
	if image == nil {
		return nil, store.NewStoreError("image", "save", "image is nil", store.ErrInvalidEntity)
	}
	if err := image.Validate(); err != nil {
		return nil, store.NewStoreError("image", "save", "validation failed", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *image
	if stored.ID == "" {
		stored.ID = uuid.NewString()
		stored.CreatedAt = s.now()
		s.byID[stored.ID] = len(s.images)
		s.images = append(s.images, &stored)
		s.logger.DebugContext(ctx, "image variant created",
			slog.String("image_id", stored.ID),
			slog.String("task_id", stored.TaskID),
			slog.String("resolution", stored.Resolution))
	} else {
		idx, ok := s.byID[stored.ID]
		if !ok {
			return nil, store.ErrImageNotFound
		}
		stored.CreatedAt = s.images[idx].CreatedAt
		s.images[idx] = &stored
	}

	out := stored
	return &out, nil
}

// FindByTaskID implements store.ImageStore.
func (s *ImageStore) FindByTaskID(_ context.Context, taskID string) ([]*domain.ImageVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*domain.ImageVariant, 0)
	for _, img := range s.images {
		if img.TaskID == taskID {
			c := *img
			matches = append(matches, &c)
		}
	}
	return matches, nil
}

// FindByHash implements store.ImageStore.
func (s *ImageStore) FindByHash(_ context.Context, hash string) (*domain.ImageVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.images) - 1; i >= 0; i-- {
		if s.images[i].ContentHash == hash {
			c := *s.images[i]
			return &c, nil
		}
	}
	return nil, store.ErrImageNotFound
}
