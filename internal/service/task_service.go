package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/cascade"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/phrazzld/tasks-api/internal/store"
)

// MaxListLimit caps the page size of ListTasks.
const MaxListLimit = 100

// CreateTaskInput carries the fields of a new task. Status defaults to PENDING.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    int
	Status      domain.TaskStatus
}

// UpdateTaskInput carries the fields to change. Nil fields are left as they are.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Priority    *int
	Status      *domain.TaskStatus
}

// ListTasksInput scopes ListTasks. An empty View lists active tasks.
type ListTasksInput struct {
	View   store.TaskView
	Search string
	Limit  int
	Offset int
}

// TaskService provides task operations for a single authenticated owner.
type TaskService interface {
	// CreateTask stores a new task and resolves the priority cascade it triggers.
	CreateTask(ctx context.Context, userID uuid.UUID, in CreateTaskInput) (*domain.Task, error)

	// UpdateTask changes a task and resolves the cascade when it stays active.
	UpdateTask(ctx context.Context, userID, taskID uuid.UUID, in UpdateTaskInput) (*domain.Task, error)

	// GetTask returns one of the user's tasks.
	GetTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error)

	// ListTasks returns the user's tasks ordered by priority, newest first on ties.
	ListTasks(ctx context.Context, userID uuid.UUID, in ListTasksInput) ([]*domain.Task, error)

	// CompleteTask marks a task COMPLETED, which removes it from the cascade.
	CompleteTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error)

	// DeleteTask soft-deletes a task.
	DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error

	// TaskHistory returns a task's status transitions, oldest first.
	TaskHistory(ctx context.Context, userID, taskID uuid.UUID) ([]*domain.StatusChange, error)

	// Summary counts the user's completed and total tasks.
	Summary(ctx context.Context, userID uuid.UUID) (domain.TaskSummary, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	db     *sql.DB
	tasks  store.TaskStore
	engine *cascade.Engine
	retry  store.RetryPolicy
	logger *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	db *sql.DB,
	tasks store.TaskStore,
	engine *cascade.Engine,
	retry store.RetryPolicy,
	logger *slog.Logger,
) (TaskService, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}
	if engine == nil {
		return nil, domain.NewValidationError("engine", "cannot be nil", domain.ErrValidation)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		db:     db,
		tasks:  tasks,
		engine: engine,
		retry:  retry,
		logger: logger.With(slog.String("component", "task_service")),
	}, nil
}

func taskError(operation, message string, err error) error {
	return newServiceError("task", operation, message, err)
}

// inTx runs fn in a transaction, re-running it while the store reports a retryable failure.
func (s *taskServiceImpl) inTx(ctx context.Context, fn func(ctx context.Context, tx store.TaskStore) error) error {
	return store.RunInTransactionWithRetry(ctx, s.db, nil, s.retry, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, s.tasks.WithTx(tx))
	})
}

// loadOwned reads a task inside tx and checks that userID owns it.
func loadOwned(ctx context.Context, tx store.TaskStore, userID, taskID uuid.UUID) (*domain.Task, error) {
	if err := tx.LockOwner(ctx, userID); err != nil {
		return nil, err
	}
	task, err := tx.GetForUpdate(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, ErrNotOwned
	}
	return task, nil
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	userID uuid.UUID,
	in CreateTaskInput,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(userID, in.Title, in.Description, in.Priority, in.Status)
	if err != nil {
		log.Debug("rejected invalid task", slog.String("error", err.Error()))
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context, tx store.TaskStore) error {
		if err := tx.LockOwner(ctx, userID); err != nil {
			return err
		}
		if err := tx.Create(ctx, task); err != nil {
			return err
		}
		if task.Active() {
			if _, err := s.engine.Resolve(ctx, tx, userID, task.Priority, task.ID); err != nil {
				return err
			}
		}
		return tx.AppendHistory(ctx, domain.NewStatusChange(task.ID, "", task.Status))
	})
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, taskError("create_task", "failed to save task", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.Int("priority", task.Priority))
	return task, nil
}

func (in UpdateTaskInput) normalize() (UpdateTaskInput, error) {
	if in.Title != nil {
		title := domain.NormalizeTitle(*in.Title)
		if err := domain.ValidateTitle(title); err != nil {
			return in, err
		}
		in.Title = &title
	}
	if in.Priority != nil {
		if err := domain.ValidatePriority(*in.Priority); err != nil {
			return in, err
		}
	}
	if in.Status != nil && !in.Status.Valid() {
		return in, domain.NewValidationError("status", "is not a known status", domain.ErrInvalidStatus)
	}
	return in, nil
}

// UpdateTask implements TaskService.UpdateTask
func (s *taskServiceImpl) UpdateTask(
	ctx context.Context,
	userID, taskID uuid.UUID,
	in UpdateTaskInput,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	in, err := in.normalize()
	if err != nil {
		log.Debug("rejected invalid task update", slog.String("error", err.Error()))
		return nil, err
	}

	var updated *domain.Task
	err = s.inTx(ctx, func(ctx context.Context, tx store.TaskStore) error {
		task, err := loadOwned(ctx, tx, userID, taskID)
		if err != nil {
			return err
		}
		oldStatus := task.Status

		if in.Title != nil {
			task.Title = *in.Title
		}
		if in.Description != nil {
			task.Description = *in.Description
		}
		if in.Priority != nil {
			task.Priority = *in.Priority
		}
		if in.Status != nil {
			task.SetStatus(*in.Status)
		}
		task.UpdatedAt = time.Now().UTC()

		if task.Active() {
			if _, err := s.engine.Resolve(ctx, tx, userID, task.Priority, task.ID); err != nil {
				return err
			}
		}
		if err := tx.Update(ctx, task); err != nil {
			return err
		}
		if task.Status != oldStatus {
			if err := tx.AppendHistory(ctx, domain.NewStatusChange(task.ID, oldStatus, task.Status)); err != nil {
				return err
			}
		}
		updated = task
		return nil
	})
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, taskError("update_task", "failed to update task", err)
	}

	return updated, nil
}

// GetTask implements TaskService.GetTask
func (s *taskServiceImpl) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to retrieve task",
				slog.String("error", err.Error()),
				slog.String("task_id", taskID.String()))
		}
		return nil, taskError("get_task", "failed to retrieve task", err)
	}
	if task.UserID != userID {
		return nil, ErrNotOwned
	}
	return task, nil
}

// ListTasks implements TaskService.ListTasks
func (s *taskServiceImpl) ListTasks(
	ctx context.Context,
	userID uuid.UUID,
	in ListTasksInput,
) ([]*domain.Task, error) {
	if in.View == "" {
		in.View = store.TaskViewActive
	}
	if !in.View.Valid() {
		return nil, domain.NewValidationError("view", "must be active, completed or all", domain.ErrInvalidFormat)
	}
	if in.Limit < 0 || in.Offset < 0 {
		return nil, domain.NewValidationError("limit", "limit and offset cannot be negative", domain.ErrInvalidFormat)
	}
	if in.Limit == 0 || in.Limit > MaxListLimit {
		in.Limit = MaxListLimit
	}

	tasks, err := s.tasks.List(ctx, store.TaskFilter{
		UserID: userID,
		View:   in.View,
		Search: in.Search,
		Limit:  in.Limit,
		Offset: in.Offset,
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, taskError("list_tasks", "failed to list tasks", err)
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return tasks, nil
}

// CompleteTask implements TaskService.CompleteTask
// Completing an already completed task is a no-op.
func (s *taskServiceImpl) CompleteTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	var completed *domain.Task
	err := s.inTx(ctx, func(ctx context.Context, tx store.TaskStore) error {
		task, err := loadOwned(ctx, tx, userID, taskID)
		if err != nil {
			return err
		}
		completed = task
		if task.Completed {
			return nil
		}

		oldStatus := task.Status
		task.SetStatus(domain.TaskStatusCompleted)
		task.UpdatedAt = time.Now().UTC()
		if err := tx.Update(ctx, task); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, domain.NewStatusChange(task.ID, oldStatus, task.Status))
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to complete task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, taskError("complete_task", "failed to complete task", err)
	}
	return completed, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	err := s.inTx(ctx, func(ctx context.Context, tx store.TaskStore) error {
		if _, err := loadOwned(ctx, tx, userID, taskID); err != nil {
			return err
		}
		return tx.SoftDelete(ctx, taskID)
	})
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) && !errors.Is(err, ErrNotOwned) {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete task",
				slog.String("error", err.Error()),
				slog.String("task_id", taskID.String()))
		}
		return taskError("delete_task", "failed to delete task", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("task deleted",
		slog.String("task_id", taskID.String()))
	return nil
}

// TaskHistory implements TaskService.TaskHistory
func (s *taskServiceImpl) TaskHistory(
	ctx context.Context,
	userID, taskID uuid.UUID,
) ([]*domain.StatusChange, error) {
	if _, err := s.GetTask(ctx, userID, taskID); err != nil {
		return nil, err
	}

	history, err := s.tasks.ListHistory(ctx, taskID)
	if err != nil {
		return nil, taskError("task_history", "failed to list history", err)
	}
	if history == nil {
		history = []*domain.StatusChange{}
	}
	return history, nil
}

// Summary implements TaskService.Summary
func (s *taskServiceImpl) Summary(ctx context.Context, userID uuid.UUID) (domain.TaskSummary, error) {
	summary, err := s.tasks.Summary(ctx, userID)
	if err != nil {
		return summary, taskError("summary", "failed to summarize tasks", err)
	}
	return summary, nil
}
