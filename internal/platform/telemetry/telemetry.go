// Package telemetry exports pipeline counters through OpenTelemetry.
//
// Setup builds the meter provider: a periodic stdout exporter when metrics
// are enabled, a no-op provider otherwise. Metrics subscribes to lifecycle
// events and turns them into counters.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/imagetask-api/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// InstrumentationName scopes every instrument created by this service.
const InstrumentationName = "github.com/phrazzld/imagetask-api"

// ShutdownFunc flushes pending metrics and releases the exporter.
type ShutdownFunc func(ctx context.Context) error

// Setup creates the meter provider described by cfg and installs it as the
// global provider. Metrics are written to w as JSON at every export interval.
func Setup(cfg config.TelemetryConfig, w io.Writer, logger *slog.Logger) (metric.MeterProvider, ShutdownFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telemetry")

	if !cfg.MetricsEnabled {
		log.Debug("metrics disabled")
		provider := noop.NewMeterProvider()
		return provider, func(context.Context) error { return nil }, nil
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "imagetask-api"),
		)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(cfg.ExportInterval()))),
	)
	otel.SetMeterProvider(provider)

	log.Info("metrics enabled", "export_interval", cfg.ExportInterval())
	return provider, provider.Shutdown, nil
}
