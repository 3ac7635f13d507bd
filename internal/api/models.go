package api

import "github.com/phrazzld/imagetask-api/internal/domain"

// CreateTaskRequest defines the payload for the task creation endpoint.
type CreateTaskRequest struct {
	// Path is a local file path or an absolute http(s) URL
	Path string `json:"path" validate:"required,source_ref"`
}

// CreateTaskResponse is returned once the task is stored. Processing has not
// finished yet, so it never carries images.
type CreateTaskResponse struct {
	TaskID string            `json:"taskId"`
	Status domain.TaskStatus `json:"status"`
	Price  float64           `json:"price"`
}

// TaskResponse is the polled view of a task.
type TaskResponse = domain.TaskView

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
