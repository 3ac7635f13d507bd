package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/imagetask-api/internal/api/shared"
	"github.com/phrazzld/imagetask-api/internal/platform/logger"
	"github.com/phrazzld/imagetask-api/internal/redact"
	"github.com/phrazzld/imagetask-api/internal/service"
)

// TaskIDParam is the chi URL parameter holding the task id.
const TaskIDParam = "taskId"

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With("component", "task_handler"),
	}
}

// CreateTask handles POST /api/tasks requests.
// The task is stored and scheduled before the response is written; the
// response never waits for image processing.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), req.Path)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("task accepted",
		"task_id", task.ID,
		"status", task.Status,
		"source", redact.SourceReference(req.Path))

	shared.RespondWithJSON(w, r, http.StatusCreated, CreateTaskResponse{
		TaskID: task.ID,
		Status: task.Status,
		Price:  task.Price,
	})
}

// GetTask handles GET /api/tasks/{taskId} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathParam(r, TaskIDParam)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	view, err := h.taskService.GetTask(r.Context(), taskID)
	if err != nil {
		if !errors.Is(err, service.ErrTaskNotFound) {
			logger.FromContextOrDefault(r.Context(), h.logger).
				Error("failed to get task", "task_id", taskID, "error", redact.Error(err))
		}
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskResponse(view))
}
