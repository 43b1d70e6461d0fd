package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/api/shared"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/phrazzld/tasks-api/internal/service"
	"github.com/stretchr/testify/mock"
)

type mockTaskService struct {
	mock.Mock
}

var _ service.TaskService = (*mockTaskService)(nil)

func (m *mockTaskService) CreateTask(ctx context.Context, userID uuid.UUID, in service.CreateTaskInput) (*domain.Task, error) {
	args := m.Called(ctx, userID, in)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *mockTaskService) UpdateTask(ctx context.Context, userID, taskID uuid.UUID, in service.UpdateTaskInput) (*domain.Task, error) {
	args := m.Called(ctx, userID, taskID, in)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *mockTaskService) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, userID, taskID)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *mockTaskService) ListTasks(ctx context.Context, userID uuid.UUID, in service.ListTasksInput) ([]*domain.Task, error) {
	args := m.Called(ctx, userID, in)
	tasks, _ := args.Get(0).([]*domain.Task)
	return tasks, args.Error(1)
}

func (m *mockTaskService) CompleteTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, userID, taskID)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *mockTaskService) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	return m.Called(ctx, userID, taskID).Error(0)
}

func (m *mockTaskService) TaskHistory(ctx context.Context, userID, taskID uuid.UUID) ([]*domain.StatusChange, error) {
	args := m.Called(ctx, userID, taskID)
	changes, _ := args.Get(0).([]*domain.StatusChange)
	return changes, args.Error(1)
}

func (m *mockTaskService) Summary(ctx context.Context, userID uuid.UUID) (domain.TaskSummary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.TaskSummary), args.Error(1)
}

type mockReportService struct {
	mock.Mock
}

var _ service.ReportService = (*mockReportService)(nil)

func (m *mockReportService) SetSchedule(ctx context.Context, userID uuid.UUID, email, reportAt string) (*domain.ReportSchedule, error) {
	args := m.Called(ctx, userID, email, reportAt)
	s, _ := args.Get(0).(*domain.ReportSchedule)
	return s, args.Error(1)
}

func (m *mockReportService) GetSchedule(ctx context.Context, userID uuid.UUID) (*domain.ReportSchedule, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*domain.ReportSchedule)
	return s, args.Error(1)
}

func (m *mockReportService) DeleteSchedule(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

// withUser stands in for the auth middleware.
func withUser(userID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID != uuid.Nil {
				r = r.WithContext(shared.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// newTestRouter mounts the handlers the way the server does, authenticated as userID.
func newTestRouter(t *testing.T, userID uuid.UUID, tasks service.TaskService, reports service.ReportService) http.Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	taskHandler := NewTaskHandler(tasks, log)
	reportHandler := NewReportHandler(reports, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(withUser(userID))
		r.Route("/tasks", func(r chi.Router) { taskHandler.Routes(r) })
		r.Route("/report-schedule", reportHandler.Routes)
	})
	return r
}
