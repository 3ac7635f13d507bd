package task

import (
	"log/slog"

	"github.com/phrazzld/imagetask-api/internal/events"
	"github.com/phrazzld/imagetask-api/internal/generation"
	"github.com/phrazzld/imagetask-api/internal/store"
)

// ImageProcessingTaskFactory creates ImageProcessingTask instances
type ImageProcessingTaskFactory struct {
	tasks     store.TaskStore
	images    store.ImageStore
	generator generation.Generator
	emitter   events.EventEmitter
	logger    *slog.Logger
}

// NewImageProcessingTaskFactory creates a new factory for ImageProcessingTasks
func NewImageProcessingTaskFactory(
	tasks store.TaskStore,
	images store.ImageStore,
	generator generation.Generator,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *ImageProcessingTaskFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageProcessingTaskFactory{
		tasks:     tasks,
		images:    images,
		generator: generator,
		emitter:   emitter,
		logger:    logger.With("component", "image_processing_task_factory"),
	}
}

// CreateTask creates a new ImageProcessingTask for the specified stored task
func (f *ImageProcessingTaskFactory) CreateTask(taskID string) (Task, error) {
	return NewImageProcessingTask(
		taskID,
		f.tasks,
		f.images,
		f.generator,
		f.emitter,
		f.logger,
	)
}
