package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	task, err := NewTask(userID, "  write quarterly report ", "numbers for Q3", 3, "")
	require.NoError(t, err)

	assert.Equal(t, uuid.Nil, task.ID, "ID is assigned by the store")
	assert.Equal(t, userID, task.UserID)
	assert.Equal(t, "WRITE QUARTERLY REPORT", task.Title)
	assert.Equal(t, 3, task.Priority)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.False(t, task.Completed)
	assert.False(t, task.Deleted)
	assert.True(t, task.Active())
	assert.False(t, task.CreatedAt.IsZero())
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)
}

func TestNewTaskCompletedStatus(t *testing.T) {
	t.Parallel()

	task, err := NewTask(uuid.New(), "ship the release notes", "", 1, TaskStatusCompleted)
	require.NoError(t, err)
	assert.True(t, task.Completed)
	assert.False(t, task.Active())
}

func TestNewTaskValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		userID   uuid.UUID
		title    string
		priority int
		status   TaskStatus
		wantErr  error
	}{
		{"missing user", uuid.Nil, "a long enough title", 1, "", ErrInvalidID},
		{"short title", uuid.New(), "too short", 1, "", ErrTitleTooShort},
		{"short after trim", uuid.New(), "   nine char   ", 1, "", ErrTitleTooShort},
		{"long title", uuid.New(), strings.Repeat("x", MaxTitleLength+1), 1, "", ErrValidation},
		{"priority zero", uuid.New(), "a long enough title", 0, "", ErrPriorityOutOfRange},
		{"priority eleven", uuid.New(), "a long enough title", 11, "", ErrPriorityOutOfRange},
		{"unknown status", uuid.New(), "a long enough title", 5, "DONE", ErrInvalidStatus},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTask(tc.userID, tc.title, "", tc.priority, tc.status)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrValidation)

			var vErr *ValidationError
			assert.True(t, errors.As(err, &vErr))
		})
	}
}

func TestValidatePriorityBounds(t *testing.T) {
	t.Parallel()

	for p := MinPriority; p <= MaxPriority; p++ {
		assert.NoError(t, ValidatePriority(p))
	}
	assert.Error(t, ValidatePriority(MinPriority-1))
	assert.Error(t, ValidatePriority(MaxPriority+1))
}

func TestValidateTitleCountsCharacters(t *testing.T) {
	t.Parallel()

	// Ten runes, more than ten bytes.
	assert.NoError(t, ValidateTitle("ÄÖÜÄÖÜÄÖÜÄ"))
	assert.Error(t, ValidateTitle("ÄÖÜÄÖÜÄÖÜ"))
}

func TestSetStatusKeepsCompletedInSync(t *testing.T) {
	t.Parallel()

	task := &Task{Status: TaskStatusPending}
	task.SetStatus(TaskStatusCompleted)
	assert.True(t, task.Completed)

	task.SetStatus(TaskStatusInProgress)
	assert.False(t, task.Completed)
}

func TestReportSchedule(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	s, err := NewReportSchedule(userID, " someone@example.com ", "08:30")
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", s.Email)
	assert.True(t, s.Enabled())

	disabled, err := NewReportSchedule(userID, "", "08:30")
	require.NoError(t, err)
	assert.False(t, disabled.Enabled())

	_, err = NewReportSchedule(userID, "not-an-email", "08:30")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewReportSchedule(userID, "", "8.30pm")
	assert.ErrorIs(t, err, ErrInvalidReportTime)

	_, err = NewReportSchedule(uuid.Nil, "", "08:30")
	assert.ErrorIs(t, err, ErrInvalidID)
}
