package migrate_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/phrazzld/imagetask-api/internal/platform/migrate"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openDB(t)

	fsys := fstest.MapFS{
		"00001_widgets.sql": {Data: []byte(`-- +goose Up
CREATE TABLE widgets (id TEXT PRIMARY KEY);

-- +goose Down
DROP TABLE widgets;
`)},
		"00002_widgets_name.sql": {Data: []byte(`-- +goose Up
ALTER TABLE widgets ADD COLUMN name TEXT NOT NULL DEFAULT '';

-- +goose Down
ALTER TABLE widgets DROP COLUMN name;
`)},
	}

	applied, err := migrate.Up(ctx, db, goose.DialectSQLite3, fsys, discard())
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	_, err = db.ExecContext(ctx, `INSERT INTO widgets (id, name) VALUES ('a', 'first')`)
	require.NoError(t, err)

	// already at the latest version
	applied, err = migrate.Up(ctx, db, goose.DialectSQLite3, fsys, discard())
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestUp_NoMigrations(t *testing.T) {
	t.Parallel()

	_, err := migrate.Up(context.Background(), openDB(t), goose.DialectSQLite3, fstest.MapFS{}, nil)
	assert.ErrorIs(t, err, migrate.ErrNoMigrations)
}

func TestUp_BrokenMigration(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"00001_broken.sql": {Data: []byte("-- +goose Up\nCREATE TABLE;\n")},
	}

	_, err := migrate.Up(context.Background(), openDB(t), goose.DialectSQLite3, fsys, discard())
	assert.ErrorContains(t, err, "failed to apply migrations")
}
