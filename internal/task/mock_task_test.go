package task

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// MockTask is a Task whose behaviour is supplied by ExecuteFn.
type MockTask struct {
	TaskID    string
	ExecuteFn func(ctx context.Context) error

	executions atomic.Int32
}

func NewMockTask(executeFn func(ctx context.Context) error) *MockTask {
	if executeFn == nil {
		executeFn = func(context.Context) error { return nil }
	}
	return &MockTask{TaskID: uuid.NewString(), ExecuteFn: executeFn}
}

func (t *MockTask) ID() string      { return t.TaskID }
func (t *MockTask) Type() string    { return "mock_task" }
func (t *MockTask) Payload() []byte { return []byte(`{"task_id":"` + t.TaskID + `"}`) }

func (t *MockTask) Execute(ctx context.Context) error {
	t.executions.Add(1)
	return t.ExecuteFn(ctx)
}

// Executions returns how many times Execute ran.
func (t *MockTask) Executions() int {
	return int(t.executions.Load())
}
