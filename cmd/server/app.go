package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/imagetask-api/internal/config"
	"github.com/phrazzld/imagetask-api/internal/domain/pricing"
	"github.com/phrazzld/imagetask-api/internal/events"
	"github.com/phrazzld/imagetask-api/internal/generation"
	"github.com/phrazzld/imagetask-api/internal/platform/httpfetch"
	"github.com/phrazzld/imagetask-api/internal/platform/imaging"
	"github.com/phrazzld/imagetask-api/internal/platform/telemetry"
	"github.com/phrazzld/imagetask-api/internal/service"
	"github.com/phrazzld/imagetask-api/internal/task"
	"github.com/spf13/afero"
)

// application holds the wired dependencies of the server process.
type application struct {
	config *config.Config
	logger *slog.Logger
	fs     afero.Fs

	stores *appStores

	generator   generation.Generator
	taskService service.TaskService

	eventEmitter *events.InMemoryEventEmitter
	taskRunner   *task.TaskRunner

	shutdownTelemetry telemetry.ShutdownFunc
}

// newApplication wires every component from cfg. Nothing runs until start.
func newApplication(cfg *config.Config, logger *slog.Logger, stores *appStores) (*application, error) {
	return newApplicationWithFs(cfg, logger, stores, afero.NewOsFs())
}

// newApplicationWithFs is newApplication with an explicit filesystem for
// sources and generated variants.
func newApplicationWithFs(
	cfg *config.Config,
	logger *slog.Logger,
	stores *appStores,
	fs afero.Fs,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		fs:     fs,
		stores: stores,
	}

	meterProvider, shutdown, err := telemetry.Setup(cfg.Telemetry, os.Stdout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	app.shutdownTelemetry = shutdown

	metrics, err := telemetry.NewMetrics(meterProvider, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app.generator, err = generation.NewEngine(
		generation.Config{
			OutputDir:     cfg.Images.OutputDir,
			Resolutions:   cfg.Images.Resolutions,
			HashAlgorithm: cfg.Images.HashAlgorithm,
		},
		fs,
		httpfetch.New(cfg.Images.FetchTimeout(), cfg.Images.MaxDownloadBytes, logger),
		imaging.NewResizer(cfg.Images.JPEGQuality),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create variant generator: %w", err)
	}
	logger.Info("variant generator initialized",
		"output_dir", cfg.Images.OutputDir,
		"resolutions", cfg.Images.Resolutions,
		"hash_algorithm", cfg.Images.HashAlgorithm)

	estimator, err := pricing.NewEstimator(cfg.Pricing.Min, cfg.Pricing.Max)
	if err != nil {
		return nil, fmt.Errorf("failed to create price estimator: %w", err)
	}

	app.taskRunner = task.NewTaskRunner(task.TaskRunnerConfig{
		QueueSize: cfg.Task.QueueSize,
	}, logger)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)

	taskFactory := task.NewImageProcessingTaskFactory(
		stores.Tasks,
		stores.Images,
		app.generator,
		app.eventEmitter,
		logger,
	)
	app.eventEmitter.Subscribe(
		task.NewTaskFactoryEventHandler(taskFactory, app.taskRunner, logger),
		events.TypeImageProcessingRequested,
	)
	app.eventEmitter.Subscribe(metrics,
		events.TypeTaskCreated, events.TypeTaskCompleted, events.TypeTaskFailed)

	app.taskService, err = service.NewTaskService(
		stores.Tasks,
		estimator,
		app.eventEmitter,
		fs,
		service.Config{RequireExistingSource: cfg.Task.RequireExistingSource},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// start launches the task runner and resubmits tasks left pending by a
// previous process.
func (app *application) start(ctx context.Context) error {
	if err := app.taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	if !app.config.Task.RecoverPending {
		return nil
	}

	n, err := app.taskService.RecoverPendingTasks(ctx)
	if err != nil {
		// a partially recovered backlog is picked up on the next start
		app.logger.Error("failed to recover pending tasks", "recovered", n, "error", err)
		return nil
	}
	if n > 0 {
		app.logger.Info("recovered pending tasks", "count", n)
	}
	return nil
}

// Run starts background processing and serves HTTP until ctx is done.
func (app *application) Run(ctx context.Context) error {
	if err := app.start(ctx); err != nil {
		app.cleanup()
		return err
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup drains the task runner, flushes metrics and closes the database.
func (app *application) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout())
	defer cancel()

	if app.taskRunner != nil {
		if err := app.taskRunner.Stop(ctx); err != nil && !errors.Is(err, task.ErrRunnerNotStarted) {
			app.logger.Error("Error stopping task runner", "error", err)
		}
	}

	if app.shutdownTelemetry != nil {
		if err := app.shutdownTelemetry(ctx); err != nil {
			app.logger.Error("Error flushing metrics", "error", err)
		}
	}

	if app.stores != nil {
		if err := app.stores.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
