package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/imagetask-api/internal/platform/logger"
)

// ErrRunnerNotStarted is returned by Stop when Start was never called.
var ErrRunnerNotStarted = errors.New("task runner not started")

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		QueueSize: 100,
	}
}

// TaskRunner manages background task processing. A single dispatch loop
// drains the queue and starts one goroutine per task, so there is no
// concurrency limit beyond the queue buffer.
type TaskRunner struct {
	queue      *TaskQueue
	logger     *slog.Logger
	errHandler func(task Task, err error)

	mu       sync.Mutex
	started  bool
	inflight sync.WaitGroup
	done     chan struct{}
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	return &TaskRunner{
		queue:  NewTaskQueue(config.QueueSize, logger),
		logger: logger,
		done:   make(chan struct{}),
		errHandler: func(task Task, err error) {
			// Default error handler just logs the error
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function.
// It must be called before Start.
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit hands a task to the runner without waiting for it to run.
// It fails with ErrQueueFull or ErrQueueClosed.
func (r *TaskRunner) Submit(_ context.Context, task Task) error {
	return r.queue.Enqueue(task)
}

// Start begins dispatching queued tasks. Calling Start twice is an error.
func (r *TaskRunner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("task runner already started")
	}
	r.started = true

	go r.dispatch()
	r.logger.Info("task runner started", "queue_capacity", cap(r.queue.tasks))
	return nil
}

// Stop closes the queue and waits until every queued and running task has
// finished or ctx expires. Running tasks are not cancelled.
func (r *TaskRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()

	r.queue.Close()
	if !started {
		return ErrRunnerNotStarted
	}

	select {
	case <-r.done:
		r.logger.Info("task runner stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("task runner stop timed out with tasks still running")
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}

// dispatch starts a goroutine per task until the queue is closed and drained,
// then waits for all of them before signalling done.
func (r *TaskRunner) dispatch() {
	for task := range r.queue.GetChannel() {
		r.inflight.Add(1)
		go r.processTask(task)
	}
	r.inflight.Wait()
	close(r.done)
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(task Task) {
	defer r.inflight.Done()

	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
	)
	// tasks outlive the request that created them
	ctx := logger.WithLogger(context.Background(), log)

	defer func() {
		if p := recover(); p != nil {
			log.Error("task panicked", "panic", p)
			r.errHandler(task, fmt.Errorf("task panicked: %v", p))
		}
	}()

	start := time.Now()
	log.Info("processing task")

	if err := task.Execute(ctx); err != nil {
		r.errHandler(task, err)
		return
	}

	log.Info("task completed successfully", "duration", time.Since(start))
}
