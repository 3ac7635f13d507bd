package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/imagetask-api/internal/platform/postgres"
	"github.com/phrazzld/imagetask-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "image_variants",
		ColumnName:     "task_id",
		ConstraintName: "image_variants_task_id_fkey",
	}
}

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, r.err }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		notFound error
		errIs    error
		contains string
	}{
		{name: "no rows generic", err: sql.ErrNoRows, errIs: store.ErrNotFound},
		{name: "no rows task", err: sql.ErrNoRows, notFound: store.ErrTaskNotFound, errIs: store.ErrTaskNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), notFound: store.ErrImageNotFound, errIs: store.ErrImageNotFound},
		{name: "unique violation", err: newPgError("23505"), errIs: store.ErrDuplicate},
		{name: "foreign key violation", err: newPgError("23503"), errIs: store.ErrInvalidEntity, contains: "image_variants_task_id_fkey"},
		{name: "check violation", err: newPgError("23514"), errIs: store.ErrInvalidEntity, contains: "check constraint"},
		{name: "not null violation", err: newPgError("23502"), errIs: store.ErrInvalidEntity, contains: "task_id"},
		{name: "serialization failure", err: newPgError("40001"), errIs: store.ErrTransactionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := postgres.MapError(tt.err, tt.notFound)
			assert.ErrorIs(t, got, tt.errIs)
			if tt.contains != "" {
				assert.Contains(t, got.Error(), tt.contains)
			}
		})
	}
}

func TestMapError_Passthrough(t *testing.T) {
	t.Parallel()

	assert.NoError(t, postgres.MapError(nil, store.ErrTaskNotFound))

	generic := errors.New("connection reset")
	assert.Same(t, generic, postgres.MapError(generic, nil))

	undefinedTable := newPgError("42P01")
	assert.Equal(t, undefinedTable, postgres.MapError(undefinedTable, nil))
}

func TestViolationPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(newPgError("23505")))
	assert.False(t, postgres.IsUniqueViolation(newPgError("23503")))
	assert.True(t, postgres.IsForeignKeyViolation(fmt.Errorf("insert: %w", newPgError("23503"))))
	assert.True(t, postgres.IsCheckConstraintViolation(newPgError("23514")))
	assert.False(t, postgres.IsCheckConstraintViolation(errors.New("plain")))
	assert.False(t, postgres.IsUniqueViolation(nil))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.Error(t, postgres.CheckRowsAffected(nil, nil))
	assert.NoError(t, postgres.CheckRowsAffected(fakeResult{rows: 1}, store.ErrTaskNotFound))
	assert.ErrorIs(t, postgres.CheckRowsAffected(fakeResult{rows: 0}, store.ErrTaskNotFound), store.ErrTaskNotFound)
	assert.ErrorIs(t, postgres.CheckRowsAffected(fakeResult{rows: 0}, nil), store.ErrNotFound)

	err := postgres.CheckRowsAffected(fakeResult{err: errors.New("driver")}, nil)
	assert.ErrorContains(t, err, "failed to get rows affected")
}
