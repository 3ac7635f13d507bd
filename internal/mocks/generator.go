package mocks

import (
	"context"
	"strconv"
	"sync"

	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/generation"
)

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateFn allows test cases to mock the Generate behavior
	GenerateFn func(ctx context.Context, sourceReference, taskID string) ([]*domain.ImageVariant, error)

	// Resolutions used by the default behavior; 1024 and 800 when empty
	Resolutions []int

	mu      sync.Mutex
	sources []string
	taskIDs []string
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements the generation.Generator interface. Without GenerateFn
// it returns one variant per resolution with a fixed content hash.
func (m *MockGenerator) Generate(
	ctx context.Context,
	sourceReference, taskID string,
) ([]*domain.ImageVariant, error) {
	m.mu.Lock()
	m.sources = append(m.sources, sourceReference)
	m.taskIDs = append(m.taskIDs, taskID)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, sourceReference, taskID)
	}

	resolutions := m.Resolutions
	if len(resolutions) == 0 {
		resolutions = generation.DefaultResolutions
	}

	variants := make([]*domain.ImageVariant, 0, len(resolutions))
	for _, r := range resolutions {
		res := strconv.Itoa(r)
		variants = append(variants, &domain.ImageVariant{
			TaskID:      taskID,
			Resolution:  res,
			Path:        "images/mock/" + res + "/" + MockContentHash + ".jpg",
			ContentHash: MockContentHash,
		})
	}
	return variants, nil
}

// MockContentHash is the hash reported by the default Generate behavior.
const MockContentHash = "0123456789abcdef0123456789abcdef"

// Calls returns the number of Generate calls so far
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.taskIDs)
}

// TaskIDs returns the task IDs passed to Generate, in call order
func (m *MockGenerator) TaskIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.taskIDs...)
}
