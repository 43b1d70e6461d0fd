package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/tasks-api/internal/platform/postgres"
	"github.com/phrazzld/tasks-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		SchemaName:     "public",
		TableName:      "tasks",
		ColumnName:     "title",
		ConstraintName: "tasks_title_check",
	}
}

// mockResult implements sql.Result for testing
type mockResult struct {
	rowsAffected int64
	err          error
}

func (m mockResult) LastInsertId() (int64, error) { return 0, m.err }
func (m mockResult) RowsAffected() (int64, error) { return m.rowsAffected, m.err }

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique violation", newPgError("23505"), store.ErrDuplicate},
		{"foreign key violation", newPgError("23503"), store.ErrInvalidEntity},
		{"check violation", newPgError("23514"), store.ErrInvalidEntity},
		{"not null violation", newPgError("23502"), store.ErrInvalidEntity},
		{"serialization failure", newPgError("40001"), store.ErrRetryable},
		{"deadlock", newPgError("40P01"), store.ErrRetryable},
		{"lock timeout", newPgError("55P03"), store.ErrRetryable},
		{"wrapped lock timeout", fmt.Errorf("select: %w", newPgError("55P03")), store.ErrRetryable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mapped := postgres.MapError(tt.err)
			assert.ErrorIs(t, mapped, tt.want)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, postgres.MapError(nil))
	})

	t.Run("unknown codes pass through", func(t *testing.T) {
		pgErr := newPgError("42601")
		assert.Equal(t, error(pgErr), postgres.MapError(pgErr))
	})
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	notFound := errors.New("thing not found")

	assert.NoError(t, postgres.CheckRowsAffected(mockResult{rowsAffected: 1}, notFound))
	assert.Equal(t, notFound, postgres.CheckRowsAffected(mockResult{}, notFound))
	assert.Equal(t, store.ErrNotFound, postgres.CheckRowsAffected(mockResult{}, nil))
	assert.Error(t, postgres.CheckRowsAffected(nil, notFound))
	assert.Error(t, postgres.CheckRowsAffected(mockResult{err: errors.New("driver")}, notFound))
}
