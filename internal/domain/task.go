package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Task field limits enforced at the write boundary.
const (
	MinTitleLength = 10
	MaxTitleLength = 255
	MinPriority    = 1
	MaxPriority    = 10
)

// TaskStatus represents where a task is in its lifecycle.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// TaskStatuses lists every valid status in display order.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusCancelled,
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Task is a unit of work owned by a single user. Priority is unique among the
// owner's active tasks from the most recent insertion point upward.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Status      TaskStatus `json:"status"`
	Completed   bool       `json:"completed"`
	Deleted     bool       `json:"deleted"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask builds a validated task with normalized fields. The ID is left to the store.
func NewTask(userID uuid.UUID, title, description string, priority int, status TaskStatus) (*Task, error) {
	if status == "" {
		status = TaskStatusPending
	}

	now := time.Now().UTC()
	t := &Task{
		UserID:      userID,
		Title:       NormalizeTitle(title),
		Description: description,
		Priority:    priority,
		Status:      status,
		Completed:   status == TaskStatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Active reports whether the task takes part in priority cascades.
func (t *Task) Active() bool {
	return !t.Deleted && !t.Completed
}

// SetStatus changes the status and keeps Completed in sync with it.
func (t *Task) SetStatus(status TaskStatus) {
	t.Status = status
	t.Completed = status == TaskStatusCompleted
}

// Validate checks the task against the write-boundary rules.
func (t *Task) Validate() error {
	if t.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	if err := ValidateTitle(t.Title); err != nil {
		return err
	}
	if err := ValidatePriority(t.Priority); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return NewValidationError("status", "is not a known status", ErrInvalidStatus)
	}
	return nil
}

// NormalizeTitle trims surrounding whitespace and upper-cases the title.
func NormalizeTitle(title string) string {
	return strings.ToUpper(strings.TrimSpace(title))
}

// ValidateTitle checks a normalized title's length in characters.
func ValidateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < MinTitleLength {
		return NewValidationError("title", "must be at least 10 characters", ErrTitleTooShort)
	}
	if n > MaxTitleLength {
		return NewValidationError("title", "must be at most 255 characters", ErrValidation)
	}
	return nil
}

// ValidatePriority checks that a requested priority is within [MinPriority, MaxPriority].
// Stored priorities may exceed MaxPriority after a cascade; this only guards requests.
func ValidatePriority(priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return NewValidationError("priority", "must be between 1 and 10", ErrPriorityOutOfRange)
	}
	return nil
}
