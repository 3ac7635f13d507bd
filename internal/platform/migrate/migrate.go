// Package migrate applies embedded goose migrations to a database.
//
// Each SQL backend embeds its own migrations directory and calls Up with the
// matching goose dialect. Migrations run at start-up before any store is
// built; there is no separate migration CLI.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

// ErrNoMigrations is returned when the supplied filesystem holds no migration files.
var ErrNoMigrations = errors.New("no migrations found")

// Up applies every pending migration found at the root of fsys.
// It returns the number of migrations applied.
func Up(ctx context.Context, db *sql.DB, dialect goose.Dialect, fsys fs.FS, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(
		slog.String("component", "migrations"),
		slog.String("dialect", string(dialect)))

	provider, err := goose.NewProvider(dialect, db, fsys, goose.WithLogger(&slogGooseLogger{logger: log}))
	if err != nil {
		if errors.Is(err, goose.ErrNoMigrations) {
			return 0, ErrNoMigrations
		}
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}

	start := time.Now()
	results, err := provider.Up(ctx)
	for _, r := range results {
		log.Info("migration applied",
			slog.Int64("version", r.Source.Version),
			slog.String("file", r.Source.Path),
			slog.Duration("duration", r.Duration))
	}
	if err != nil {
		var partial *goose.PartialError
		if errors.As(err, &partial) && partial.Failed != nil {
			log.Error("migration failed",
				slog.Int64("version", partial.Failed.Source.Version),
				slog.String("file", partial.Failed.Source.Path),
				slog.String("error", partial.Err.Error()))
		}
		return len(results), fmt.Errorf("failed to apply migrations: %w", err)
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return len(results), fmt.Errorf("failed to read schema version: %w", err)
	}

	log.Info("migrations complete",
		slog.Int("applied", len(results)),
		slog.Int64("version", current),
		slog.Duration("elapsed", time.Since(start)))
	return len(results), nil
}

// slogGooseLogger routes goose output through slog. Fatalf logs at error
// level and leaves exiting to the caller.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
