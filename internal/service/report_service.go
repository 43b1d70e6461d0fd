package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/phrazzld/tasks-api/internal/store"
)

// ReportService manages the digest schedule of a user.
type ReportService interface {
	// SetSchedule creates or replaces the user's schedule. An empty email disables the digest.
	SetSchedule(ctx context.Context, userID uuid.UUID, email, reportAt string) (*domain.ReportSchedule, error)

	// GetSchedule returns the user's schedule or ErrReportScheduleNotFound.
	GetSchedule(ctx context.Context, userID uuid.UUID) (*domain.ReportSchedule, error)

	// DeleteSchedule removes the user's schedule or returns ErrReportScheduleNotFound.
	DeleteSchedule(ctx context.Context, userID uuid.UUID) error
}

type reportServiceImpl struct {
	schedules store.ReportScheduleStore
	logger    *slog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(schedules store.ReportScheduleStore, logger *slog.Logger) (ReportService, error) {
	if schedules == nil {
		return nil, domain.NewValidationError("schedules", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &reportServiceImpl{
		schedules: schedules,
		logger:    logger.With(slog.String("component", "report_service")),
	}, nil
}

func reportError(operation, message string, err error) error {
	return newServiceError("report", operation, message, err)
}

func (s *reportServiceImpl) SetSchedule(
	ctx context.Context,
	userID uuid.UUID,
	email, reportAt string,
) (*domain.ReportSchedule, error) {
	schedule, err := domain.NewReportSchedule(userID, email, reportAt)
	if err != nil {
		return nil, err
	}

	if err := s.schedules.Upsert(ctx, schedule); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to save report schedule",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, reportError("set_schedule", "failed to save schedule", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("report schedule saved",
		slog.String("user_id", userID.String()),
		slog.String("report_at", schedule.ReportAt),
		slog.Bool("enabled", schedule.Enabled()))
	return schedule, nil
}

func (s *reportServiceImpl) GetSchedule(ctx context.Context, userID uuid.UUID) (*domain.ReportSchedule, error) {
	schedule, err := s.schedules.Get(ctx, userID)
	if err != nil {
		return nil, reportError("get_schedule", "failed to load schedule", err)
	}
	return schedule, nil
}

func (s *reportServiceImpl) DeleteSchedule(ctx context.Context, userID uuid.UUID) error {
	if err := s.schedules.Delete(ctx, userID); err != nil {
		return reportError("delete_schedule", "failed to delete schedule", err)
	}
	return nil
}
