package mocks

import (
	"context"

	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// TestifyMockImageStore is a mock of store.ImageStore interface for use with testify/mock
type TestifyMockImageStore struct {
	mock.Mock
}

var _ store.ImageStore = (*TestifyMockImageStore)(nil)

// Save is a mock implementation of store.ImageStore.Save
func (m *TestifyMockImageStore) Save(ctx context.Context, image *domain.ImageVariant) (*domain.ImageVariant, error) {
	args := m.Called(ctx, image)
	if saved, ok := args.Get(0).(*domain.ImageVariant); ok {
		return saved, args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByTaskID is a mock implementation of store.ImageStore.FindByTaskID
func (m *TestifyMockImageStore) FindByTaskID(ctx context.Context, taskID string) ([]*domain.ImageVariant, error) {
	args := m.Called(ctx, taskID)
	if images, ok := args.Get(0).([]*domain.ImageVariant); ok {
		return images, args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByHash is a mock implementation of store.ImageStore.FindByHash
func (m *TestifyMockImageStore) FindByHash(ctx context.Context, hash string) (*domain.ImageVariant, error) {
	args := m.Called(ctx, hash)
	if image, ok := args.Get(0).(*domain.ImageVariant); ok {
		return image, args.Error(1)
	}
	return nil, args.Error(1)
}
