package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/imagetask-api/internal/events"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricTasksCreated   = "imagetask.tasks.created"
	MetricTasksCompleted = "imagetask.tasks.completed"
	MetricTasksFailed    = "imagetask.tasks.failed"
	MetricVariants       = "imagetask.variants.generated"
	MetricQuotedPrice    = "imagetask.price.quoted"
)

// Metrics counts task lifecycle events. It implements events.EventHandler.
type Metrics struct {
	created   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	variants  metric.Int64Counter
	quoted    metric.Float64Counter
	logger    *slog.Logger
}

var _ events.EventHandler = (*Metrics)(nil)

// NewMetrics creates the pipeline instruments on the provider's meter.
func NewMetrics(provider metric.MeterProvider, logger *slog.Logger) (*Metrics, error) {
	if logger == nil {
		logger = slog.Default()
	}
	meter := provider.Meter(InstrumentationName)

	m := &Metrics{logger: logger.With("component", "metrics")}
	var err error

	if m.created, err = meter.Int64Counter(MetricTasksCreated,
		metric.WithDescription("Tasks accepted for processing"),
		metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricTasksCreated, err)
	}
	if m.completed, err = meter.Int64Counter(MetricTasksCompleted,
		metric.WithDescription("Tasks whose variants were all generated"),
		metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricTasksCompleted, err)
	}
	if m.failed, err = meter.Int64Counter(MetricTasksFailed,
		metric.WithDescription("Tasks that ended in the failed status"),
		metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricTasksFailed, err)
	}
	if m.variants, err = meter.Int64Counter(MetricVariants,
		metric.WithDescription("Image variants recorded for completed tasks"),
		metric.WithUnit("{image}")); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricVariants, err)
	}
	if m.quoted, err = meter.Float64Counter(MetricQuotedPrice,
		metric.WithDescription("Sum of prices quoted at task creation"),
		metric.WithUnit("{currency}")); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricQuotedPrice, err)
	}

	return m, nil
}

// HandleEvent implements events.EventHandler. Unknown event types are ignored.
func (m *Metrics) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	switch event.Type {
	case events.TypeTaskCreated, events.TypeTaskCompleted, events.TypeTaskFailed:
	default:
		return nil
	}

	payload, err := event.TaskPayload()
	if err != nil {
		m.logger.Warn("unreadable event payload", "event_type", event.Type, "error", err)
		return nil
	}

	switch event.Type {
	case events.TypeTaskCreated:
		m.created.Add(ctx, 1)
		m.quoted.Add(ctx, payload.Price)
	case events.TypeTaskCompleted:
		m.completed.Add(ctx, 1)
		m.variants.Add(ctx, int64(payload.VariantCount))
	case events.TypeTaskFailed:
		m.failed.Add(ctx, 1)
	}
	return nil
}
