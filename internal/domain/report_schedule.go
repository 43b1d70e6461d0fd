package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportTimeLayout is the clock format of ReportSchedule.ReportAt.
const ReportTimeLayout = "15:04"

// ReportSchedule tells the digest job when to email a user their pending tasks.
// An empty Email disables the digest for that user.
type ReportSchedule struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	ReportAt  string    `json:"report_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReportSchedule builds a validated schedule.
func NewReportSchedule(userID uuid.UUID, email, reportAt string) (*ReportSchedule, error) {
	s := &ReportSchedule{
		UserID:    userID,
		Email:     strings.TrimSpace(email),
		ReportAt:  strings.TrimSpace(reportAt),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the user, email and clock fields.
func (s *ReportSchedule) Validate() error {
	if s.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	if s.Email != "" {
		if _, err := mail.ParseAddress(s.Email); err != nil {
			return NewValidationError("email", "is not a valid address", ErrInvalidEmail)
		}
	}
	if _, err := time.Parse(ReportTimeLayout, s.ReportAt); err != nil {
		return NewValidationError("report_at", "must be HH:MM", ErrInvalidReportTime)
	}
	return nil
}

// Enabled reports whether a digest should be sent for this schedule.
func (s *ReportSchedule) Enabled() bool {
	return s.Email != ""
}

// ReportClock formats t in the schedule's clock layout.
func ReportClock(t time.Time) string {
	return t.Format(ReportTimeLayout)
}
