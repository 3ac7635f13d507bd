package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/phrazzld/imagetask-api/internal/platform/migrate"
	"github.com/pressly/goose/v3"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// defaultPragmas apply to every connection unless the DSN sets its own.
var defaultPragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

// Open opens (or creates) the database at dsn, which is a file path or a
// modernc.org/sqlite DSN such as ":memory:".
//
// The pool is limited to one connection: SQLite allows a single writer, and
// an in-memory database only exists on the connection that created it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return db, nil
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	_, err = migrate.Up(ctx, db, goose.DialectSQLite3, fsys, logger)
	return err
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}

	params := make([]string, 0, len(defaultPragmas))
	for _, p := range defaultPragmas {
		params = append(params, "_pragma="+p)
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
