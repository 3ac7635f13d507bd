package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/imagetask-api/internal/api"
	"github.com/phrazzld/imagetask-api/internal/config"
	"github.com/phrazzld/imagetask-api/internal/platform/postgres"
	"github.com/phrazzld/imagetask-api/internal/platform/sqlite"
	"github.com/phrazzld/imagetask-api/internal/store"
	"github.com/phrazzld/imagetask-api/internal/store/memory"
)

// pingableTaskStore is a task store the health check can ping.
type pingableTaskStore interface {
	store.TaskStore
	api.Pinger
}

// appStores bundles the stores selected by database.driver.
type appStores struct {
	Tasks  pingableTaskStore
	Images store.ImageStore
	// DB is nil for the memory driver
	DB *sql.DB
}

// Close releases the database connection, if any.
func (s *appStores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// openStores opens the configured backend and applies pending migrations.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*appStores, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory stores; tasks are lost on restart")
		return &appStores{
			Tasks:  memory.NewTaskStore(logger),
			Images: memory.NewImageStore(logger),
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("Database connection established", "driver", config.DriverSQLite)
		return &appStores{
			Tasks:  sqlite.NewTaskStore(db, logger),
			Images: sqlite.NewImageStore(db, logger),
			DB:     db,
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("Database connection established", "driver", config.DriverPostgres)
		return &appStores{
			Tasks:  postgres.NewTaskStore(db, logger),
			Images: postgres.NewImageStore(db, logger),
			DB:     db,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
