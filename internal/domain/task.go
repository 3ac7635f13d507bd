package domain

import (
	"time"
)

// TaskStatus represents the processing state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// CheckTransition reports whether a stored task in status from may be
// overwritten with status to. A terminal task is never overwritten.
func CheckTransition(from, to TaskStatus) error {
	if from.IsTerminal() {
		return ErrInvalidTransition
	}
	if !to.IsValid() {
		return ErrInvalidTaskStatus
	}
	return nil
}

// TaskImage is the client-facing reference to one generated variant.
type TaskImage struct {
	Resolution string `json:"resolution"`
	Path       string `json:"path"`
}

// Task tracks the processing of one source image reference.
//
// ID, CreatedAt and UpdatedAt are assigned by the store. Price and
// SourceReference never change after creation.
type Task struct {
	ID              string      `json:"task_id"`
	Status          TaskStatus  `json:"status"`
	Price           float64     `json:"price"`
	SourceReference string      `json:"source_reference"`
	Images          []TaskImage `json:"images,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewTask creates a pending task for the given source reference and price.
// The source reference is validated; the ID is left for the store to assign.
func NewTask(sourceReference string, price float64) (*Task, error) {
	if err := ValidateSourceReference(sourceReference); err != nil {
		return nil, err
	}

	return &Task{
		Status:          TaskStatusPending,
		Price:           price,
		SourceReference: sourceReference,
		Images:          []TaskImage{},
	}, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if !t.Status.IsValid() {
		return ErrInvalidTaskStatus
	}

	if err := ValidateSourceReference(t.SourceReference); err != nil {
		return err
	}

	// variants are present if and only if the task completed
	if (t.Status == TaskStatusCompleted) != (len(t.Images) > 0) {
		return NewValidationError("images", "must be non-empty exactly when status is completed", ErrValidation)
	}

	return nil
}

// Complete moves a pending task to completed with the generated variants.
func (t *Task) Complete(images []TaskImage) error {
	if t.Status != TaskStatusPending {
		return ErrInvalidTransition
	}
	if len(images) == 0 {
		return ErrNoVariants
	}

	t.Status = TaskStatusCompleted
	t.Images = append([]TaskImage(nil), images...)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail moves a pending task to failed and drops any variants.
func (t *Task) Fail() error {
	if t.Status != TaskStatusPending {
		return ErrInvalidTransition
	}

	t.Status = TaskStatusFailed
	t.Images = []TaskImage{}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// TaskView is the projection of a Task returned to clients.
type TaskView struct {
	TaskID string      `json:"taskId"`
	Status TaskStatus  `json:"status"`
	Price  float64     `json:"price"`
	Images []TaskImage `json:"images,omitempty"`
}

// NewTaskView projects a task for clients. Variants are only included once the
// task has completed and at least one variant exists.
func NewTaskView(t *Task) TaskView {
	view := TaskView{
		TaskID: t.ID,
		Status: t.Status,
		Price:  t.Price,
	}

	if t.Status == TaskStatusCompleted && len(t.Images) > 0 {
		view.Images = make([]TaskImage, len(t.Images))
		copy(view.Images, t.Images)
	}

	return view
}
