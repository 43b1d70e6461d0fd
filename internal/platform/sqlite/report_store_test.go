package sqlite_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/platform/sqlite"
	"github.com/phrazzld/tasks-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportScheduleStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := sqlite.NewReportScheduleStore(openTestDB(t), nil)
	userID := uuid.New()

	_, err := s.Get(ctx, userID)
	assert.ErrorIs(t, err, store.ErrReportScheduleNotFound)

	sch, err := domain.NewReportSchedule(userID, "ada@example.com", "09:30")
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, sch))

	sch.ReportAt = "18:00"
	require.NoError(t, s.Upsert(ctx, sch))

	got, err := s.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "18:00", got.ReportAt)
	assert.Equal(t, "ada@example.com", got.Email)

	disabled, err := domain.NewReportSchedule(uuid.New(), "", "18:00")
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, disabled))

	due, err := s.ListDue(ctx, "18:00")
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, userID, due[0].UserID)

	due, err = s.ListDue(ctx, "09:30")
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, s.Delete(ctx, userID))
	assert.ErrorIs(t, s.Delete(ctx, userID), store.ErrReportScheduleNotFound)
}
