package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes registers the task endpoints on r, which is expected to be mounted at
// /api/tasks. createMiddleware wraps only task creation.
func (h *TaskHandler) Routes(r chi.Router, createMiddleware ...func(http.Handler) http.Handler) {
	r.With(createMiddleware...).Post("/", h.CreateTask)
	r.Get("/", h.ListTasks)
	r.Get("/summary", h.Summary)
	r.Get("/{id}", h.GetTask)
	r.Put("/{id}", h.UpdateTask)
	r.Delete("/{id}", h.DeleteTask)
	r.Post("/{id}/complete", h.CompleteTask)
	r.Get("/{id}/history", h.TaskHistory)
}

// Routes registers the schedule endpoints on r, which is expected to be mounted at /api/report-schedule.
func (h *ReportHandler) Routes(r chi.Router) {
	r.Put("/", h.SetSchedule)
	r.Get("/", h.GetSchedule)
	r.Delete("/", h.DeleteSchedule)
}
