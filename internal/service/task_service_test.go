package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/cascade"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/phrazzld/tasks-api/internal/platform/migrations"
	"github.com/phrazzld/tasks-api/internal/platform/sqlite"
	"github.com/phrazzld/tasks-api/internal/service"
	"github.com/phrazzld/tasks-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	tasks *sqlite.TaskStore
	svc   service.TaskService
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logger.NewTestLogger(t)
	require.NoError(t, migrations.Up(ctx, db.DB, "sqlite", log))

	tasks := sqlite.NewTaskStore(db, log)
	svc, err := service.NewTaskService(
		db.DB,
		tasks,
		cascade.NewEngine(cascade.ModeUntilFree, log),
		store.DefaultRetryPolicy(),
		log,
	)
	require.NoError(t, err)
	return fixture{tasks: tasks, svc: svc}
}

func (f fixture) create(t *testing.T, userID uuid.UUID, title string, priority int) *domain.Task {
	t.Helper()
	task, err := f.svc.CreateTask(context.Background(), userID, service.CreateTaskInput{
		Title:    title,
		Priority: priority,
	})
	require.NoError(t, err)
	return task
}

func (f fixture) priorities(t *testing.T, ids ...uuid.UUID) []int {
	t.Helper()
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		task, err := f.tasks.GetByID(context.Background(), id)
		require.NoError(t, err)
		out = append(out, task.Priority)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestCreateTaskResolvesThreeWayCollision(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	seed := func(title string, priority int, createdAt time.Time) *domain.Task {
		task, err := domain.NewTask(userID, title, "", priority, "")
		require.NoError(t, err)
		task.CreatedAt, task.UpdatedAt = createdAt, createdAt
		require.NoError(t, f.tasks.Create(ctx, task))
		return task
	}
	b := seed("task b at priority three", 3, base)
	a := seed("task a at priority three", 3, base.Add(time.Minute))
	c := seed("task c at priority four", 4, base.Add(-time.Minute))

	d := f.create(t, userID, "task d at priority three", 3)

	assert.Equal(t, []int{3, 4, 5, 6}, f.priorities(t, d.ID, a.ID, b.ID, c.ID))
}

func TestCreateTaskNormalizesAndRecordsHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()

	task := f.create(t, userID, "  pay the electricity bill  ", 2)
	assert.Equal(t, "PAY THE ELECTRICITY BILL", task.Title)
	assert.Equal(t, domain.TaskStatusPending, task.Status)

	history, err := f.svc.TaskHistory(context.Background(), userID, task.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TaskStatus(""), history[0].OldStatus)
	assert.Equal(t, domain.TaskStatusPending, history[0].NewStatus)
}

func TestCreateTaskOnlyShiftsOwnTasks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()

	bobs := f.create(t, bob, "bob's first priority", 1)
	first := f.create(t, alice, "alice first priority", 1)
	second := f.create(t, alice, "alice second priority", 1)

	assert.Equal(t, []int{2, 1, 1}, f.priorities(t, first.ID, second.ID, bobs.ID))
}

func TestUpdateTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	one := f.create(t, userID, "priority one task here", 1)
	two := f.create(t, userID, "priority two task here", 2)
	three := f.create(t, userID, "priority three task here", 3)

	t.Run("moving into a used priority cascades", func(t *testing.T) {
		updated, err := f.svc.UpdateTask(ctx, userID, one.ID, service.UpdateTaskInput{Priority: ptr(2)})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Priority)
		assert.Equal(t, []int{2, 3, 4}, f.priorities(t, one.ID, two.ID, three.ID))
	})

	t.Run("status change is recorded", func(t *testing.T) {
		updated, err := f.svc.UpdateTask(ctx, userID, one.ID, service.UpdateTaskInput{
			Title:  ptr("priority one task renamed"),
			Status: ptr(domain.TaskStatusInProgress),
		})
		require.NoError(t, err)
		assert.Equal(t, "PRIORITY ONE TASK RENAMED", updated.Title)

		history, err := f.svc.TaskHistory(ctx, userID, one.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, domain.TaskStatusInProgress, history[1].NewStatus)
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		_, err := f.svc.UpdateTask(ctx, userID, one.ID, service.UpdateTaskInput{Priority: ptr(11)})
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, err = f.svc.UpdateTask(ctx, userID, one.ID, service.UpdateTaskInput{Title: ptr("tiny")})
		assert.ErrorIs(t, err, domain.ErrTitleTooShort)
	})

	t.Run("other owners are refused", func(t *testing.T) {
		_, err := f.svc.UpdateTask(ctx, uuid.New(), one.ID, service.UpdateTaskInput{Priority: ptr(5)})
		assert.ErrorIs(t, err, service.ErrNotOwned)
	})

	t.Run("missing task", func(t *testing.T) {
		_, err := f.svc.UpdateTask(ctx, userID, uuid.New(), service.UpdateTaskInput{Priority: ptr(5)})
		assert.ErrorIs(t, err, service.ErrTaskNotFound)
	})
}

func TestCompletedTasksLeaveTheCascade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	done := f.create(t, userID, "finished work item", 5)
	completed, err := f.svc.CompleteTask(ctx, userID, done.ID)
	require.NoError(t, err)
	assert.True(t, completed.Completed)
	assert.Equal(t, domain.TaskStatusCompleted, completed.Status)

	again, err := f.svc.CompleteTask(ctx, userID, done.ID)
	require.NoError(t, err)
	assert.True(t, again.Completed)

	fresh := f.create(t, userID, "new work at the same level", 5)
	assert.Equal(t, []int{5, 5}, f.priorities(t, done.ID, fresh.ID))

	history, err := f.svc.TaskHistory(ctx, userID, done.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "completing twice records one transition")
}

func TestCreateCompletedTaskDoesNotCascade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	active := f.create(t, userID, "active work at three", 3)

	done, err := f.svc.CreateTask(ctx, userID, service.CreateTaskInput{
		Title:    "already finished at three",
		Priority: 3,
		Status:   domain.TaskStatusCompleted,
	})
	require.NoError(t, err)
	assert.True(t, done.Completed)

	assert.Equal(t, []int{3, 3}, f.priorities(t, active.ID, done.ID))
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	task := f.create(t, userID, "soon to be deleted", 1)

	assert.ErrorIs(t, f.svc.DeleteTask(ctx, uuid.New(), task.ID), service.ErrNotOwned)
	require.NoError(t, f.svc.DeleteTask(ctx, userID, task.ID))

	_, err := f.svc.GetTask(ctx, userID, task.ID)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
	assert.ErrorIs(t, f.svc.DeleteTask(ctx, userID, task.ID), service.ErrTaskNotFound)
}

func TestListTasksAndSummary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	f.create(t, userID, "water the garden plants", 1)
	f.create(t, userID, "wash the car this weekend", 2)
	done := f.create(t, userID, "walk the dog after lunch", 3)
	_, err := f.svc.CompleteTask(ctx, userID, done.ID)
	require.NoError(t, err)

	active, err := f.svc.ListTasks(ctx, userID, service.ListTasksInput{})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := f.svc.ListTasks(ctx, userID, service.ListTasksInput{View: store.TaskViewAll, Search: "wash"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "WASH THE CAR THIS WEEKEND", all[0].Title)

	_, err = f.svc.ListTasks(ctx, userID, service.ListTasksInput{View: "archived"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	none, err := f.svc.ListTasks(ctx, uuid.New(), service.ListTasksInput{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	summary, err := f.svc.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskSummary{Completed: 1, Total: 3}, summary)
}

func TestGetTaskOwnership(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	task := f.create(t, userID, "private task contents", 1)

	got, err := f.svc.GetTask(ctx, userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = f.svc.GetTask(ctx, uuid.New(), task.ID)
	assert.ErrorIs(t, err, service.ErrNotOwned)

	_, err = f.svc.TaskHistory(ctx, uuid.New(), task.ID)
	assert.ErrorIs(t, err, service.ErrNotOwned)
}
