package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/imagetask-api/internal/events"
)

// Factory builds a processing unit for a stored task.
type Factory interface {
	CreateTask(taskID string) (Task, error)
}

// Submitter accepts units for background execution.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler implements the events.EventHandler interface
// to turn processing requests into tasks and hand them to the runner.
type TaskFactoryEventHandler struct {
	taskFactory Factory
	taskRunner  Submitter
	logger      *slog.Logger
}

// NewTaskFactoryEventHandler creates a new event handler that uses the given task factory
// to create tasks, and submits them to the provided task runner.
func NewTaskFactoryEventHandler(
	taskFactory Factory,
	taskRunner Submitter,
	logger *slog.Logger,
) *TaskFactoryEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskFactoryEventHandler{
		taskFactory: taskFactory,
		taskRunner:  taskRunner,
		logger:      logger.With("component", "task_factory_event_handler"),
	}
}

// Ensure TaskFactoryEventHandler implements events.EventHandler
var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)

// HandleEvent creates and submits a task for processing request events and
// ignores every other event type. A submission failure is returned so the
// emitter's caller can react to it.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	if event.Type != events.TypeImageProcessingRequested {
		return nil
	}

	payload, err := event.TaskPayload()
	if err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	task, err := h.taskFactory.CreateTask(payload.TaskID)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"task_id", payload.TaskID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.taskRunner.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", payload.TaskID,
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Debug("task submitted",
		"task_id", payload.TaskID,
		"event_id", event.ID)
	return nil
}
