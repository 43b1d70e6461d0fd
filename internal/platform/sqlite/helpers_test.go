package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/phrazzld/tasks-api/internal/platform/migrations"
	"github.com/phrazzld/tasks-api/internal/platform/sqlite"
	"github.com/stretchr/testify/require"
)

// openTestDB opens a migrated file database that is removed with the test.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(ctx, db.DB, "sqlite", logger.NewTestLogger(t)))
	return db
}

// insertTask stores a task directly, bypassing the cascade.
func insertTask(
	t *testing.T,
	s *sqlite.TaskStore,
	userID uuid.UUID,
	title string,
	priority int,
	createdAt time.Time,
) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(userID, title, "", priority, domain.TaskStatusPending)
	require.NoError(t, err)
	task.CreatedAt = createdAt
	task.UpdatedAt = createdAt
	require.NoError(t, s.Create(context.Background(), task))
	return task
}
