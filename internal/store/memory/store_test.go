package memory_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/store"
	"github.com/phrazzld/imagetask-api/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPendingTask(t *testing.T, source string) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(source, 12.34)
	require.NoError(t, err)
	return task
}

func TestTaskStore_CreateAndFind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewTaskStore(discardLogger())

	input := newPendingTask(t, "images/photo.jpg")
	created, err := s.Create(ctx, input)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Empty(t, input.ID, "argument must not be modified")
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, domain.TaskStatusPending, created.Status)

	found, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, found)

	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func TestTaskStore_CreateRejectsInvalid(t *testing.T) {
	t.Parallel()
	s := memory.NewTaskStore(discardLogger())

	_, err := s.Create(context.Background(), &domain.Task{Status: "bogus", SourceReference: "images/photo.jpg"})
	assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)

	_, err = s.Create(context.Background(), nil)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestTaskStore_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewTaskStore(discardLogger())

	created, err := s.Create(ctx, newPendingTask(t, "images/photo.jpg"))
	require.NoError(t, err)

	images := []domain.TaskImage{{Resolution: "1024", Path: "images/photo/1024/h.jpg"}}
	change := *created
	require.NoError(t, change.Complete(images))
	change.Price = 99
	change.SourceReference = "other.jpg"

	updated, err := s.Update(ctx, created.ID, &change)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, updated.Status)
	assert.Equal(t, images, updated.Images)
	assert.Equal(t, created.Price, updated.Price, "price is immutable")
	assert.Equal(t, created.SourceReference, updated.SourceReference, "source is immutable")
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = s.Update(ctx, "missing", &change)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_UpdateTerminalRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewTaskStore(discardLogger())

	created, err := s.Create(ctx, newPendingTask(t, "images/photo.jpg"))
	require.NoError(t, err)
	completed := *created
	require.NoError(t, completed.Complete([]domain.TaskImage{{Resolution: "800", Path: "images/photo/800/h.jpg"}}))
	_, err = s.Update(ctx, created.ID, &completed)
	require.NoError(t, err)

	failed := *created
	require.NoError(t, failed.Fail())
	_, err = s.Update(ctx, created.ID, &failed)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = s.Update(ctx, created.ID, created)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "pending again")

	found, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, found.Status)
	assert.Len(t, found.Images, 1)
}

func TestTaskStore_FindByStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewTaskStore(discardLogger())

	var pendingIDs []string
	for i := 0; i < 3; i++ {
		created, err := s.Create(ctx, newPendingTask(t, "images/photo.jpg"))
		require.NoError(t, err)
		pendingIDs = append(pendingIDs, created.ID)
	}

	failed := newPendingTask(t, "images/other.jpg")
	created, err := s.Create(ctx, failed)
	require.NoError(t, err)
	require.NoError(t, created.Fail())
	_, err = s.Update(ctx, created.ID, created)
	require.NoError(t, err)

	pending, err := s.FindByStatus(ctx, domain.TaskStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for _, task := range pending {
		assert.Contains(t, pendingIDs, task.ID)
	}

	limited, err := s.FindByStatus(ctx, domain.TaskStatusPending, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	completed, err := s.FindByStatus(ctx, domain.TaskStatusCompleted, 0)
	require.NoError(t, err)
	assert.Empty(t, completed)
}

func TestTaskStore_ConcurrentCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewTaskStore(discardLogger())

	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, _ := domain.NewTask("images/photo.jpg", 5)
			created, err := s.Create(ctx, task)
			if err == nil {
				ids <- created.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 50)
}

func TestImageStore_SaveCreateOrUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewImageStore(discardLogger())

	variant := &domain.ImageVariant{TaskID: "t1", Resolution: "1024", Path: "p/1024/h.jpg", ContentHash: "h"}
	saved, err := s.Save(ctx, variant)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Empty(t, variant.ID)

	saved.Path = "p/1024/h2.jpg"
	updated, err := s.Save(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, "p/1024/h2.jpg", updated.Path)

	all, err := s.FindByTaskID(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "p/1024/h2.jpg", all[0].Path)

	ghost := *saved
	ghost.ID = "ghost"
	_, err = s.Save(ctx, &ghost)
	assert.ErrorIs(t, err, store.ErrImageNotFound)

	_, err = s.Save(ctx, &domain.ImageVariant{TaskID: "t1"})
	assert.ErrorIs(t, err, domain.ErrEmptyImageResolution)
}

func TestImageStore_Finders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewImageStore(discardLogger())

	for _, v := range []domain.ImageVariant{
		{TaskID: "t1", Resolution: "1024", Path: "a/1024/h.jpg", ContentHash: "h"},
		{TaskID: "t1", Resolution: "800", Path: "a/800/h.jpg", ContentHash: "h"},
		{TaskID: "t2", Resolution: "1024", Path: "b/1024/h.jpg", ContentHash: "h"},
	} {
		_, err := s.Save(ctx, &v)
		require.NoError(t, err)
	}

	byTask, err := s.FindByTaskID(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, byTask, 2)
	assert.Equal(t, "1024", byTask[0].Resolution)
	assert.Equal(t, "800", byTask[1].Resolution)

	none, err := s.FindByTaskID(ctx, "t9")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	latest, err := s.FindByHash(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "t2", latest.TaskID)

	_, err = s.FindByHash(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrImageNotFound)
}
