package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/store"
)

type scheduleRow struct {
	UserID    uuid.UUID `db:"user_id"`
	Email     string    `db:"email"`
	ReportAt  string    `db:"report_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r scheduleRow) toDomain() *domain.ReportSchedule {
	return &domain.ReportSchedule{
		UserID:    r.UserID,
		Email:     r.Email,
		ReportAt:  r.ReportAt,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// ReportScheduleStore implements store.ReportScheduleStore on SQLite.
type ReportScheduleStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Ensure ReportScheduleStore implements store.ReportScheduleStore interface
var _ store.ReportScheduleStore = (*ReportScheduleStore)(nil)

// NewReportScheduleStore creates a ReportScheduleStore on db.
func NewReportScheduleStore(db *sqlx.DB, logger *slog.Logger) *ReportScheduleStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportScheduleStore{
		db:     db,
		logger: logger.With(slog.String("component", "report_schedule_store"), slog.String("backend", "sqlite")),
	}
}

// Upsert implements store.ReportScheduleStore.Upsert.
func (s *ReportScheduleStore) Upsert(ctx context.Context, schedule *domain.ReportSchedule) error {
	query := `
		INSERT INTO report_schedules (user_id, email, report_at, updated_at)
		VALUES (:user_id, :email, :report_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE
		SET email = excluded.email, report_at = excluded.report_at, updated_at = excluded.updated_at`
	row := scheduleRow{
		UserID:    schedule.UserID,
		Email:     schedule.Email,
		ReportAt:  schedule.ReportAt,
		UpdatedAt: schedule.UpdatedAt.UTC(),
	}
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		s.logger.Error("failed to upsert report schedule",
			slog.String("error", err.Error()),
			slog.String("user_id", schedule.UserID.String()))
		return MapError(err)
	}
	return nil
}

// Get implements store.ReportScheduleStore.Get.
func (s *ReportScheduleStore) Get(ctx context.Context, userID uuid.UUID) (*domain.ReportSchedule, error) {
	var row scheduleRow
	query := `SELECT user_id, email, report_at, updated_at FROM report_schedules WHERE user_id = ?`
	if err := s.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReportScheduleNotFound
		}
		return nil, MapError(err)
	}
	return row.toDomain(), nil
}

// Delete implements store.ReportScheduleStore.Delete.
func (s *ReportScheduleStore) Delete(ctx context.Context, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM report_schedules WHERE user_id = ?`, userID)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrReportScheduleNotFound)
}

// ListDue implements store.ReportScheduleStore.ListDue.
func (s *ReportScheduleStore) ListDue(ctx context.Context, clock string) ([]*domain.ReportSchedule, error) {
	query := `
		SELECT user_id, email, report_at, updated_at
		FROM report_schedules
		WHERE report_at = ? AND email <> ''
		ORDER BY user_id`
	var rows []scheduleRow
	if err := s.db.SelectContext(ctx, &rows, query, clock); err != nil {
		return nil, MapError(err)
	}

	schedules := make([]*domain.ReportSchedule, 0, len(rows))
	for _, r := range rows {
		schedules = append(schedules, r.toDomain())
	}
	return schedules, nil
}
