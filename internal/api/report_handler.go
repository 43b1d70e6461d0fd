package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasks-api/internal/api/shared"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/phrazzld/tasks-api/internal/service"
)

// ReportHandler handles the authenticated user's digest schedule.
type ReportHandler struct {
	reports service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports service.ReportService, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReportHandler")
	}

	return &ReportHandler{
		reports: reports,
		logger:  logger.With(slog.String("component", "report_handler")),
	}
}

// SetSchedule handles PUT /api/report-schedule
func (h *ReportHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req SetReportScheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	schedule, err := h.reports.SetSchedule(r.Context(), userID, req.Email, req.ReportAt)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to save report schedule")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, scheduleToResponse(schedule))
}

// GetSchedule handles GET /api/report-schedule
func (h *ReportHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	schedule, err := h.reports.GetSchedule(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load report schedule")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, scheduleToResponse(schedule))
}

// DeleteSchedule handles DELETE /api/report-schedule
func (h *ReportHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	if err := h.reports.DeleteSchedule(r.Context(), userID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete report schedule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
