package api

import (
	"time"

	"github.com/phrazzld/tasks-api/internal/domain"
)

// CreateTaskRequest is the body of POST /api/tasks. Status defaults to PENDING.
type CreateTaskRequest struct {
	Title       string `json:"title"       validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Priority    int    `json:"priority"    validate:"gte=1,lte=10"`
	Status      string `json:"status"      validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
}

// UpdateTaskRequest is the body of PUT /api/tasks/{id}. Omitted fields keep their value.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"       validate:"omitempty,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Priority    *int    `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// SetReportScheduleRequest is the body of PUT /api/report-schedule.
// An empty email disables the digest.
type SetReportScheduleRequest struct {
	Email    string `json:"email"     validate:"omitempty,email"`
	ReportAt string `json:"report_at" validate:"required,datetime=15:04"`
}

// TaskResponse is the public representation of a task.
type TaskResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Status      string    `json:"status"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskListResponse wraps a page of tasks.
type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// StatusChangeResponse is one entry of a task's history.
type StatusChangeResponse struct {
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
}

// SummaryResponse reports completed versus total tasks.
type SummaryResponse struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ReportScheduleResponse is the public representation of a digest schedule.
type ReportScheduleResponse struct {
	Email     string    `json:"email"`
	ReportAt  string    `json:"report_at"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID.String(),
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		Status:      string(task.Status),
		Completed:   task.Completed,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, taskToResponse(task))
	}
	return out
}

func historyToResponse(changes []*domain.StatusChange) []StatusChangeResponse {
	out := make([]StatusChangeResponse, 0, len(changes))
	for _, c := range changes {
		out = append(out, StatusChangeResponse{
			OldStatus: string(c.OldStatus),
			NewStatus: string(c.NewStatus),
			ChangedAt: c.ChangedAt,
		})
	}
	return out
}

func scheduleToResponse(s *domain.ReportSchedule) ReportScheduleResponse {
	return ReportScheduleResponse{
		Email:     s.Email,
		ReportAt:  s.ReportAt,
		Enabled:   s.Enabled(),
		UpdatedAt: s.UpdatedAt,
	}
}
