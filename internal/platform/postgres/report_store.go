package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/phrazzld/tasks-api/internal/store"
)

// PostgresReportScheduleStore implements store.ReportScheduleStore.
type PostgresReportScheduleStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Ensure PostgresReportScheduleStore implements store.ReportScheduleStore interface
var _ store.ReportScheduleStore = (*PostgresReportScheduleStore)(nil)

// NewPostgresReportScheduleStore creates a new report schedule store.
// If logger is nil, a default logger will be used.
func NewPostgresReportScheduleStore(db store.DBTX, logger *slog.Logger) *PostgresReportScheduleStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresReportScheduleStore{
		db:     db,
		logger: logger.With(slog.String("component", "report_schedule_store")),
	}
}

// Upsert implements store.ReportScheduleStore.Upsert.
func (s *PostgresReportScheduleStore) Upsert(ctx context.Context, schedule *domain.ReportSchedule) error {
	query := `
		INSERT INTO report_schedules (user_id, email, report_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email, report_at = EXCLUDED.report_at, updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		schedule.UserID, schedule.Email, schedule.ReportAt, schedule.UpdatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to upsert report schedule",
			slog.String("error", err.Error()),
			slog.String("user_id", schedule.UserID.String()))
		return MapError(err)
	}
	return nil
}

// Get implements store.ReportScheduleStore.Get.
func (s *PostgresReportScheduleStore) Get(ctx context.Context, userID uuid.UUID) (*domain.ReportSchedule, error) {
	query := `SELECT user_id, email, report_at, updated_at FROM report_schedules WHERE user_id = $1`

	var sch domain.ReportSchedule
	err := s.db.QueryRowContext(ctx, query, userID).
		Scan(&sch.UserID, &sch.Email, &sch.ReportAt, &sch.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReportScheduleNotFound
		}
		return nil, MapError(err)
	}
	sch.UpdatedAt = sch.UpdatedAt.UTC()
	return &sch, nil
}

// Delete implements store.ReportScheduleStore.Delete.
func (s *PostgresReportScheduleStore) Delete(ctx context.Context, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM report_schedules WHERE user_id = $1`, userID)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrReportScheduleNotFound)
}

// ListDue implements store.ReportScheduleStore.ListDue.
func (s *PostgresReportScheduleStore) ListDue(ctx context.Context, clock string) ([]*domain.ReportSchedule, error) {
	query := `
		SELECT user_id, email, report_at, updated_at
		FROM report_schedules
		WHERE report_at = $1 AND email <> ''
		ORDER BY user_id
	`
	rows, err := s.db.QueryContext(ctx, query, clock)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list due report schedules",
			slog.String("error", err.Error()),
			slog.String("clock", clock))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var schedules []*domain.ReportSchedule
	for rows.Next() {
		var sch domain.ReportSchedule
		if err := rows.Scan(&sch.UserID, &sch.Email, &sch.ReportAt, &sch.UpdatedAt); err != nil {
			return nil, MapError(err)
		}
		sch.UpdatedAt = sch.UpdatedAt.UTC()
		schedules = append(schedules, &sch)
	}
	return schedules, MapError(rows.Err())
}
