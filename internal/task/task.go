package task

import (
	"context"

	"github.com/phrazzld/imagetask-api/internal/events"
)

// TaskTypeImageProcessing identifies units that generate the variants of a
// stored task. It matches the event type that requests them.
const TaskTypeImageProcessing = events.TypeImageProcessingRequested

// Task is a unit of background work handed to the TaskRunner.
type Task interface {
	// ID returns the identifier of the stored task the unit works on.
	ID() string

	// Type returns the unit type, used for logging.
	Type() string

	// Payload returns the JSON the unit was built from.
	Payload() []byte

	// Execute runs the unit. It is called at most once per submission and
	// never sees a cancellation from the request that scheduled it.
	Execute(ctx context.Context) error
}
