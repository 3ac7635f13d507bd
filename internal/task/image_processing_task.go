package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/events"
	"github.com/phrazzld/imagetask-api/internal/generation"
	"github.com/phrazzld/imagetask-api/internal/platform/logger"
	"github.com/phrazzld/imagetask-api/internal/redact"
	"github.com/phrazzld/imagetask-api/internal/store"
)

// Common errors
var (
	ErrNilTaskStore  = errors.New("task store cannot be nil")
	ErrNilImageStore = errors.New("image store cannot be nil")
	ErrNilGenerator  = errors.New("generator cannot be nil")
	ErrNilLogger     = errors.New("logger cannot be nil")
	ErrEmptyTaskID   = errors.New("task ID cannot be empty")
)

// imageProcessingPayload represents the serialized data carried by the task
type imageProcessingPayload struct {
	TaskID string `json:"task_id"`
}

// ImageProcessingTask generates the variants of one stored task and records
// the terminal status. Failures end in status failed and are never returned
// to whoever created the task.
type ImageProcessingTask struct {
	taskID    string
	tasks     store.TaskStore
	images    store.ImageStore
	generator generation.Generator
	emitter   events.EventEmitter
	logger    *slog.Logger
}

// NewImageProcessingTask creates a new image processing task.
// emitter may be nil, in which case no lifecycle events are published.
func NewImageProcessingTask(
	taskID string,
	tasks store.TaskStore,
	images store.ImageStore,
	generator generation.Generator,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*ImageProcessingTask, error) {
	if tasks == nil {
		return nil, ErrNilTaskStore
	}
	if images == nil {
		return nil, ErrNilImageStore
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if taskID == "" {
		return nil, ErrEmptyTaskID
	}

	return &ImageProcessingTask{
		taskID:    taskID,
		tasks:     tasks,
		images:    images,
		generator: generator,
		emitter:   emitter,
		logger:    logger.With("task_type", TaskTypeImageProcessing),
	}, nil
}

// ID returns the identifier of the stored task being processed
func (t *ImageProcessingTask) ID() string {
	return t.taskID
}

// Type returns the task type identifier
func (t *ImageProcessingTask) Type() string {
	return TaskTypeImageProcessing
}

// Payload returns the task data as a byte slice
func (t *ImageProcessingTask) Payload() []byte {
	data, err := json.Marshal(imageProcessingPayload{TaskID: t.taskID})
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Execute generates the variants, stores them, and moves the task to a
// terminal status. A task that is already terminal is left untouched, so
// re-submitting a task is harmless.
func (t *ImageProcessingTask) Execute(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, t.logger).With("task_id", t.taskID)

	current, err := t.tasks.FindByID(ctx, t.taskID)
	if err != nil {
		log.Error("failed to load task", "error", err)
		return fmt.Errorf("failed to load task: %w", err)
	}

	if current.Status.IsTerminal() {
		log.Debug("task already terminal, nothing to do", "status", current.Status)
		return nil
	}

	log.Info("starting image processing",
		"source", redact.SourceReference(current.SourceReference))

	variants, err := t.generator.Generate(ctx, current.SourceReference, current.ID)
	if err != nil {
		return t.fail(ctx, log, current, err)
	}

	saved := make([]*domain.ImageVariant, 0, len(variants))
	for _, v := range variants {
		s, err := t.images.Save(ctx, v)
		if err != nil {
			// the task stays pending; a later recovery run can finish it
			log.Error("failed to save image variant",
				"resolution", v.Resolution,
				"error", err)
			return fmt.Errorf("failed to save image variant: %w", err)
		}
		saved = append(saved, s)
	}

	if err := current.Complete(domain.TaskImages(saved)); err != nil {
		return t.fail(ctx, log, current, err)
	}

	if _, err := t.tasks.Update(ctx, current.ID, current); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Info("task finished by another run, result discarded")
			return nil
		}
		log.Error("failed to mark task completed", "error", err)
		return fmt.Errorf("failed to mark task completed: %w", err)
	}

	t.emit(ctx, log, events.TypeTaskCompleted, events.TaskPayload{
		TaskID:       current.ID,
		VariantCount: len(saved),
	})
	log.Info("image processing completed", "variant_count", len(saved))
	return nil
}

// fail records the failed status and returns cause wrapped for the runner's
// error handler.
func (t *ImageProcessingTask) fail(ctx context.Context, log *slog.Logger, current *domain.Task, cause error) error {
	log.Warn("image processing failed",
		"error", redact.Error(cause),
		"acquisition_error", generation.IsAcquisitionError(cause),
		"processing_error", generation.IsProcessingError(cause))

	if err := current.Fail(); err != nil {
		return fmt.Errorf("image processing failed: %w (status change rejected: %v)", cause, err)
	}

	if _, err := t.tasks.Update(ctx, current.ID, current); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Info("task finished by another run, failure discarded", "error", redact.Error(cause))
			return nil
		}
		log.Error("failed to mark task failed", "error", err)
		return fmt.Errorf("image processing failed: %w (status not recorded: %v)", cause, err)
	}

	t.emit(ctx, log, events.TypeTaskFailed, events.TaskPayload{
		TaskID: current.ID,
		Reason: redact.Error(cause),
	})
	return fmt.Errorf("image processing failed: %w", cause)
}

func (t *ImageProcessingTask) emit(ctx context.Context, log *slog.Logger, eventType string, payload events.TaskPayload) {
	if t.emitter == nil {
		return
	}

	event, err := events.NewTaskEvent(eventType, payload)
	if err != nil {
		log.Error("failed to build event", "event_type", eventType, "error", err)
		return
	}
	if err := t.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("failed to emit event", "event_type", eventType, "error", err)
	}
}
