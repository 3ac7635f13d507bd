package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/events"
	"github.com/phrazzld/imagetask-api/internal/generation"
	"github.com/phrazzld/imagetask-api/internal/mocks"
	"github.com/phrazzld/imagetask-api/internal/store"
	"github.com/phrazzld/imagetask-api/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type processingFixture struct {
	tasks     *mocks.MockTaskStore
	images    *memory.ImageStore
	generator *mocks.MockGenerator
	emitter   *mocks.MockEventEmitter
	stored    *domain.Task
}

func newProcessingFixture(t *testing.T) *processingFixture {
	t.Helper()

	f := &processingFixture{
		tasks:     &mocks.MockTaskStore{},
		images:    memory.NewImageStore(setupTestLogger()),
		generator: &mocks.MockGenerator{},
		emitter:   &mocks.MockEventEmitter{},
	}

	task, err := domain.NewTask("images/photo.jpg", 12.5)
	require.NoError(t, err)
	f.stored, err = f.tasks.Create(context.Background(), task)
	require.NoError(t, err)
	return f
}

func (f *processingFixture) newTask(t *testing.T) *ImageProcessingTask {
	t.Helper()
	task, err := NewImageProcessingTask(f.stored.ID, f.tasks, f.images, f.generator, f.emitter, setupTestLogger())
	require.NoError(t, err)
	return task
}

func TestNewImageProcessingTask_Validation(t *testing.T) {
	t.Parallel()

	f := newProcessingFixture(t)
	log := setupTestLogger()

	tests := []struct {
		name    string
		build   func() (*ImageProcessingTask, error)
		wantErr error
	}{
		{"nil task store", func() (*ImageProcessingTask, error) {
			return NewImageProcessingTask("id", nil, f.images, f.generator, nil, log)
		}, ErrNilTaskStore},
		{"nil image store", func() (*ImageProcessingTask, error) {
			return NewImageProcessingTask("id", f.tasks, nil, f.generator, nil, log)
		}, ErrNilImageStore},
		{"nil generator", func() (*ImageProcessingTask, error) {
			return NewImageProcessingTask("id", f.tasks, f.images, nil, nil, log)
		}, ErrNilGenerator},
		{"nil logger", func() (*ImageProcessingTask, error) {
			return NewImageProcessingTask("id", f.tasks, f.images, f.generator, nil, nil)
		}, ErrNilLogger},
		{"empty id", func() (*ImageProcessingTask, error) {
			return NewImageProcessingTask("", f.tasks, f.images, f.generator, nil, log)
		}, ErrEmptyTaskID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			task, err := tc.build()
			assert.Nil(t, task)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestImageProcessingTask_Metadata(t *testing.T) {
	t.Parallel()

	f := newProcessingFixture(t)
	task := f.newTask(t)

	assert.Equal(t, f.stored.ID, task.ID())
	assert.Equal(t, TaskTypeImageProcessing, task.Type())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, f.stored.ID, payload["task_id"])
}

func TestImageProcessingTask_Success(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newProcessingFixture(t)
	require.NoError(t, f.newTask(t).Execute(ctx))

	got, err := f.tasks.FindByID(ctx, f.stored.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "1024", got.Images[0].Resolution)
	assert.Equal(t, "800", got.Images[1].Resolution)
	for _, img := range got.Images {
		assert.Contains(t, img.Path, mocks.MockContentHash)
	}

	saved, err := f.images.FindByTaskID(ctx, f.stored.ID)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	assert.Equal(t, []string{events.TypeTaskCompleted}, f.emitter.Types())
	payload, err := f.emitter.Events()[0].TaskPayload()
	require.NoError(t, err)
	assert.Equal(t, 2, payload.VariantCount)
}

func TestImageProcessingTask_GenerationFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newProcessingFixture(t)
	cause := &generation.AcquisitionError{Source: "images/photo.jpg", Reason: "does not exist", Err: generation.ErrSourceNotFound}
	f.generator.GenerateFn = func(context.Context, string, string) ([]*domain.ImageVariant, error) {
		return nil, cause
	}

	err := f.newTask(t).Execute(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrSourceNotFound)

	got, findErr := f.tasks.FindByID(ctx, f.stored.ID)
	require.NoError(t, findErr)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Empty(t, got.Images)

	saved, findErr := f.images.FindByTaskID(ctx, f.stored.ID)
	require.NoError(t, findErr)
	assert.Empty(t, saved)

	assert.Equal(t, []string{events.TypeTaskFailed}, f.emitter.Types())
}

func TestImageProcessingTask_TerminalTaskSkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newProcessingFixture(t)
	require.NoError(t, f.newTask(t).Execute(ctx))
	require.Equal(t, 1, f.generator.Calls())

	// a second run on a completed task does nothing
	require.NoError(t, f.newTask(t).Execute(ctx))
	assert.Equal(t, 1, f.generator.Calls())
	assert.Len(t, f.tasks.Updates(), 1)
}

func TestImageProcessingTask_MissingTask(t *testing.T) {
	t.Parallel()

	f := newProcessingFixture(t)
	task, err := NewImageProcessingTask("ghost", f.tasks, f.images, f.generator, f.emitter, setupTestLogger())
	require.NoError(t, err)

	err = task.Execute(context.Background())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.Zero(t, f.generator.Calls())
}

// Persistence errors in the background leave the task in its last stored state.
func TestImageProcessingTask_ImageSaveFailureLeavesPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newProcessingFixture(t)
	images := &mocks.TestifyMockImageStore{}
	images.On("Save", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	task, err := NewImageProcessingTask(f.stored.ID, f.tasks, images, f.generator, f.emitter, setupTestLogger())
	require.NoError(t, err)

	err = task.Execute(ctx)
	require.Error(t, err)

	got, findErr := f.tasks.FindByID(ctx, f.stored.ID)
	require.NoError(t, findErr)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	assert.Empty(t, f.emitter.Types())
}

func TestImageProcessingTask_StatusUpdateFailure(t *testing.T) {
	t.Parallel()

	f := newProcessingFixture(t)
	f.tasks.UpdateFn = func(context.Context, string, *domain.Task) (*domain.Task, error) {
		return nil, errors.New("connection refused")
	}

	err := f.newTask(t).Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, f.emitter.Types())
}

func TestImageProcessingTaskFactory(t *testing.T) {
	t.Parallel()

	f := newProcessingFixture(t)
	factory := NewImageProcessingTaskFactory(f.tasks, f.images, f.generator, f.emitter, setupTestLogger())

	created, err := factory.CreateTask(f.stored.ID)
	require.NoError(t, err)
	assert.Equal(t, f.stored.ID, created.ID())

	_, err = factory.CreateTask("")
	assert.ErrorIs(t, err, ErrEmptyTaskID)
}

// Two runs on one task: the run that finishes last must not overwrite the
// status recorded by the first.
func TestImageProcessingTask_OverlappingRuns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		slowErr  error
		slowVars bool
	}{
		{name: "late failure is discarded", slowErr: errors.New("fetch timed out")},
		{name: "late completion is discarded", slowVars: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			f := newProcessingFixture(t)

			entered := make(chan struct{})
			release := make(chan struct{})
			slowGen := &mocks.MockGenerator{
				GenerateFn: func(_ context.Context, source, taskID string) ([]*domain.ImageVariant, error) {
					close(entered)
					<-release
					if !tc.slowVars {
						return nil, tc.slowErr
					}
					return []*domain.ImageVariant{{
						TaskID: taskID, Resolution: "640", Path: "images/photo/640/late.jpg", ContentHash: "late",
					}}, nil
				},
			}
			slowEmitter := &mocks.MockEventEmitter{}
			slow, err := NewImageProcessingTask(f.stored.ID, f.tasks, f.images, slowGen, slowEmitter, setupTestLogger())
			require.NoError(t, err)

			slowDone := make(chan error, 1)
			go func() { slowDone <- slow.Execute(ctx) }()
			<-entered

			require.NoError(t, f.newTask(t).Execute(ctx))
			close(release)
			assert.NoError(t, <-slowDone)

			got, err := f.tasks.FindByID(ctx, f.stored.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TaskStatusCompleted, got.Status)
			require.Len(t, got.Images, 2)
			assert.Equal(t, "1024", got.Images[0].Resolution)

			assert.Equal(t, []string{events.TypeTaskCompleted}, f.emitter.Types())
			assert.Empty(t, slowEmitter.Types())
		})
	}
}
