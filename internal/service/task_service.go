package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/domain/pricing"
	"github.com/phrazzld/imagetask-api/internal/events"
	"github.com/phrazzld/imagetask-api/internal/platform/logger"
	"github.com/phrazzld/imagetask-api/internal/redact"
	"github.com/phrazzld/imagetask-api/internal/store"
	"github.com/spf13/afero"
)

// TaskService provides task-related operations
type TaskService interface {
	// CreateTask validates the source reference, stores a pending task with a
	// quoted price, and hands it to background processing. It returns as
	// soon as the task is stored; processing outcomes never surface here.
	CreateTask(ctx context.Context, sourceReference string) (*domain.Task, error)

	// GetTask returns the client view of a task, or ErrTaskNotFound.
	GetTask(ctx context.Context, taskID string) (domain.TaskView, error)

	// RecoverPendingTasks re-submits every pending task for processing and
	// returns how many were submitted.
	RecoverPendingTasks(ctx context.Context) (int, error)
}

// Config tunes the task service.
type Config struct {
	// RequireExistingSource rejects local sources that do not exist at
	// creation time instead of letting processing fail them.
	RequireExistingSource bool
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks     store.TaskStore
	estimator pricing.Estimator
	emitter   events.EventEmitter
	fs        afero.Fs
	cfg       Config
	logger    *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil. A nil fs
// falls back to the OS filesystem.
func NewTaskService(
	tasks store.TaskStore,
	estimator pricing.Estimator,
	emitter events.EventEmitter,
	fs afero.Fs,
	cfg Config,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "tasks cannot be nil"}
	}
	if estimator == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "estimator cannot be nil"}
	}
	if emitter == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "emitter cannot be nil"}
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:     tasks,
		estimator: estimator,
		emitter:   emitter,
		fs:        fs,
		cfg:       cfg,
		logger:    logger.With("component", "task_service"),
	}, nil
}

// CreateTask implements TaskService.
//
// If the processing request cannot be scheduled, the task is marked failed
// and returned without an error: the caller still gets a task whose status
// reflects what happened to it.
func (s *taskServiceImpl) CreateTask(ctx context.Context, sourceReference string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		"source", redact.SourceReference(sourceReference))

	if err := domain.ValidateSourceReference(sourceReference); err != nil {
		log.Debug("rejected source reference", "error", err)
		return nil, err
	}

	if s.cfg.RequireExistingSource && domain.ClassifySource(sourceReference) == domain.SourceLocal {
		if err := s.checkLocalSource(sourceReference); err != nil {
			log.Debug("rejected missing local source", "error", err)
			return nil, err
		}
	}

	task, err := domain.NewTask(sourceReference, s.estimator.Estimate())
	if err != nil {
		return nil, err
	}

	created, err := s.tasks.Create(ctx, task)
	if err != nil {
		log.Error("failed to save task", "error", err)
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	if created == nil || created.ID == "" {
		log.Error("store returned a task without an identifier; processing not scheduled")
		return created, &TaskServiceError{
			Operation: "create_task",
			Message:   "store returned an unusable task",
			Err:       ErrMissingTaskID,
		}
	}

	log = log.With("task_id", created.ID)
	log.Info("task created", "price", created.Price)

	s.emit(ctx, log, events.TypeTaskCreated, events.TaskPayload{
		TaskID: created.ID,
		Price:  created.Price,
	})

	if err := s.schedule(ctx, created.ID); err != nil {
		log.Error("failed to schedule processing; marking task failed", "error", err)
		return s.failUnscheduled(ctx, log, created, err)
	}

	log.Debug("processing scheduled")
	return created, nil
}

// GetTask implements TaskService.
func (s *taskServiceImpl) GetTask(ctx context.Context, taskID string) (domain.TaskView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.Debug("task not found", "task_id", taskID)
			return domain.TaskView{}, ErrTaskNotFound
		}
		log.Error("failed to retrieve task", "task_id", taskID, "error", err)
		return domain.TaskView{}, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}

	return domain.NewTaskView(task), nil
}

// RecoverPendingTasks implements TaskService. Generation is idempotent, so a
// task interrupted mid-processing can safely run again from the start.
func (s *taskServiceImpl) RecoverPendingTasks(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	pending, err := s.tasks.FindByStatus(ctx, domain.TaskStatusPending, 0)
	if err != nil {
		log.Error("failed to list pending tasks", "error", err)
		return 0, NewTaskServiceError("recover_tasks", "failed to list pending tasks", err)
	}

	submitted := 0
	for _, task := range pending {
		if err := s.schedule(ctx, task.ID); err != nil {
			log.Warn("stopped recovering pending tasks",
				"submitted", submitted,
				"remaining", len(pending)-submitted,
				"error", err)
			return submitted, NewTaskServiceError("recover_tasks", "failed to resubmit task", err)
		}
		submitted++
	}

	if submitted > 0 {
		log.Info("resubmitted pending tasks", "count", submitted)
	}
	return submitted, nil
}

func (s *taskServiceImpl) checkLocalSource(ref string) error {
	info, err := s.fs.Stat(ref)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return domain.NewValidationError("path", "does not exist", domain.ErrInvalidSourceReference)
	case err != nil:
		return domain.NewValidationError("path", "is not readable", domain.ErrInvalidSourceReference)
	case info.IsDir():
		return domain.NewValidationError("path", "is a directory", domain.ErrInvalidSourceReference)
	}
	return nil
}

// schedule publishes the processing request. The event handler submits the
// work to the background runner and reports queue errors back here.
func (s *taskServiceImpl) schedule(ctx context.Context, taskID string) error {
	event, err := events.NewTaskEvent(events.TypeImageProcessingRequested, events.TaskPayload{TaskID: taskID})
	if err != nil {
		return err
	}
	return s.emitter.EmitEvent(ctx, event)
}

func (s *taskServiceImpl) failUnscheduled(
	ctx context.Context,
	log *slog.Logger,
	task *domain.Task,
	cause error,
) (*domain.Task, error) {
	if err := task.Fail(); err != nil {
		return nil, NewTaskServiceError("create_task", "failed to mark unscheduled task failed", err)
	}

	updated, err := s.tasks.Update(ctx, task.ID, task)
	if err != nil {
		log.Error("failed to record failed status", "error", err)
		return nil, NewTaskServiceError("create_task", "failed to record scheduling failure", err)
	}

	s.emit(ctx, log, events.TypeTaskFailed, events.TaskPayload{
		TaskID: task.ID,
		Reason: redact.Error(cause),
	})
	return updated, nil
}

func (s *taskServiceImpl) emit(ctx context.Context, log *slog.Logger, eventType string, payload events.TaskPayload) {
	event, err := events.NewTaskEvent(eventType, payload)
	if err != nil {
		log.Error("failed to build event", "event_type", eventType, "error", err)
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("failed to emit event", "event_type", eventType, "error", err)
	}
}
