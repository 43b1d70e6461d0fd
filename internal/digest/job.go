package digest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/job"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
)

// JobType identifies digest jobs in logs.
const JobType = "task_digest"

// PendingCounter reads a user's active task counts per status.
type PendingCounter interface {
	CountPendingByStatus(ctx context.Context, userID uuid.UUID) ([]domain.StatusCount, error)
}

// Job sends one user's digest.
type Job struct {
	id       uuid.UUID
	schedule domain.ReportSchedule
	counter  PendingCounter
	mailer   Mailer
	from     string
}

var _ job.Job = (*Job)(nil)

// NewJob creates a digest job for schedule.
func NewJob(schedule domain.ReportSchedule, counter PendingCounter, mailer Mailer, from string) *Job {
	return &Job{
		id:       uuid.New(),
		schedule: schedule,
		counter:  counter,
		mailer:   mailer,
		from:     from,
	}
}

// ID implements job.Job.
func (j *Job) ID() uuid.UUID { return j.id }

// Type implements job.Job.
func (j *Job) Type() string { return JobType }

// UserID returns the user the digest is for.
func (j *Job) UserID() uuid.UUID { return j.schedule.UserID }

// Execute implements job.Job.
func (j *Job) Execute(ctx context.Context) error {
	counts, err := j.counter.CountPendingByStatus(ctx, j.schedule.UserID)
	if err != nil {
		return fmt.Errorf("counting pending tasks: %w", err)
	}

	msg := Message{
		From:    j.from,
		To:      j.schedule.Email,
		Subject: Subject,
		Body:    BuildBody(DisplayName(j.schedule.Email), counts),
	}
	if err := j.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending digest: %w", err)
	}

	logger.FromContext(ctx).Info("digest sent",
		slog.String("user_id", j.schedule.UserID.String()),
		slog.Int("statuses", len(counts)))
	return nil
}
