package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusChange records one status transition of a task. The first entry for a
// task has an empty OldStatus.
type StatusChange struct {
	ID        int64      `json:"id"`
	TaskID    uuid.UUID  `json:"task_id"`
	OldStatus TaskStatus `json:"old_status,omitempty"`
	NewStatus TaskStatus `json:"new_status"`
	ChangedAt time.Time  `json:"changed_at"`
}

// NewStatusChange returns a history entry stamped with the current time.
func NewStatusChange(taskID uuid.UUID, oldStatus, newStatus TaskStatus) *StatusChange {
	return &StatusChange{
		TaskID:    taskID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ChangedAt: time.Now().UTC(),
	}
}

// StatusCount is the number of pending (not completed, not deleted) tasks in a status.
type StatusCount struct {
	Status TaskStatus `json:"status"`
	Total  int        `json:"total"`
}

// TaskSummary reports how many of a user's live tasks are completed.
type TaskSummary struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}
