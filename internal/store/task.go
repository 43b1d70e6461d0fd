package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/cascade"
	"github.com/phrazzld/tasks-api/internal/domain"
)

// TaskView selects which of a user's tasks List returns. Deleted tasks are never listed.
type TaskView string

// Supported views
const (
	TaskViewActive    TaskView = "active"
	TaskViewCompleted TaskView = "completed"
	TaskViewAll       TaskView = "all"
)

// Valid reports whether v is a known view.
func (v TaskView) Valid() bool {
	switch v {
	case TaskViewActive, TaskViewCompleted, TaskViewAll:
		return true
	}
	return false
}

// TaskFilter scopes a List call. Results are ordered by (priority ASC, created_at DESC, id ASC).
type TaskFilter struct {
	UserID uuid.UUID
	View   TaskView
	// Search matches titles case-insensitively when non-empty.
	Search string
	Limit  int
	Offset int
}

// TaskStore defines the interface for task data persistence.
// It embeds cascade.Store, so a transaction-bound TaskStore can be handed to
// the cascade engine directly.
type TaskStore interface {
	cascade.Store

	// LockOwner serializes writers for the owner until the transaction ends.
	// It must be called before any row of that owner is locked.
	LockOwner(ctx context.Context, userID uuid.UUID) error

	// Create saves a new task. If task.ID is uuid.Nil a new ID is assigned
	// and written back to task.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a non-deleted task by ID.
	// Returns ErrTaskNotFound if the task does not exist or is deleted.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetForUpdate is GetByID with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update writes title, description, priority, status and completed.
	// Returns ErrTaskNotFound if the task does not exist or is deleted.
	Update(ctx context.Context, task *domain.Task) error

	// SoftDelete marks a task deleted. Deleted tasks leave cascade scope permanently.
	// Returns ErrTaskNotFound if the task does not exist or is already deleted.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// List returns the tasks matching filter.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// Summary counts the user's non-deleted tasks and how many are completed.
	Summary(ctx context.Context, userID uuid.UUID) (domain.TaskSummary, error)

	// CountPendingByStatus counts the user's active tasks per status, smallest first.
	CountPendingByStatus(ctx context.Context, userID uuid.UUID) ([]domain.StatusCount, error)

	// AppendHistory records a status transition.
	AppendHistory(ctx context.Context, change *domain.StatusChange) error

	// ListHistory returns a task's status transitions, oldest first.
	ListHistory(ctx context.Context, taskID uuid.UUID) ([]*domain.StatusChange, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}

// ReportScheduleStore defines the interface for digest schedule persistence.
type ReportScheduleStore interface {
	// Upsert creates or replaces the user's schedule.
	Upsert(ctx context.Context, schedule *domain.ReportSchedule) error

	// Get returns the user's schedule or ErrReportScheduleNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*domain.ReportSchedule, error)

	// Delete removes the user's schedule or returns ErrReportScheduleNotFound.
	Delete(ctx context.Context, userID uuid.UUID) error

	// ListDue returns enabled schedules whose report time equals clock ("HH:MM").
	ListDue(ctx context.Context, clock string) ([]*domain.ReportSchedule, error)
}
