package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/phrazzld/tasks-api/internal/cascade"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/phrazzld/tasks-api/internal/store"
)

const taskColumns = `id, user_id, title, description, priority, status, completed, deleted, created_at, updated_at`

// taskRow mirrors the tasks table for sqlx scanning.
type taskRow struct {
	ID          uuid.UUID `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Priority    int       `db:"priority"`
	Status      string    `db:"status"`
	Completed   bool      `db:"completed"`
	Deleted     bool      `db:"deleted"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r taskRow) toDomain() *domain.Task {
	return &domain.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      domain.TaskStatus(r.Status),
		Completed:   r.Completed,
		Deleted:     r.Deleted,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type candidateRow struct {
	ID        uuid.UUID `db:"id"`
	Priority  int       `db:"priority"`
	CreatedAt time.Time `db:"created_at"`
}

type historyRow struct {
	ID        int64     `db:"id"`
	TaskID    uuid.UUID `db:"task_id"`
	OldStatus string    `db:"old_status"`
	NewStatus string    `db:"new_status"`
	ChangedAt time.Time `db:"changed_at"`
}

// TaskStore implements store.TaskStore on SQLite.
type TaskStore struct {
	db     sqlx.ExtContext
	mapper *reflectx.Mapper
	logger *slog.Logger
}

// Ensure TaskStore implements store.TaskStore interface
var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore on db. If logger is nil, a default logger is used.
func NewTaskStore(db *sqlx.DB, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		db:     db,
		mapper: db.Mapper,
		logger: logger.With(slog.String("component", "task_store"), slog.String("backend", "sqlite")),
	}
}

// WithTx implements store.TaskStore.WithTx.
func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &TaskStore{
		db:     &sqlx.Tx{Tx: tx, Mapper: s.mapper},
		mapper: s.mapper,
		logger: s.logger,
	}
}

// LockOwner is a no-op: the transaction already holds the database write lock.
func (s *TaskStore) LockOwner(ctx context.Context, userID uuid.UUID) error {
	return nil
}

// Create implements store.TaskStore.Create.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.UserID, task.Title, task.Description, task.Priority,
		string(task.Status), task.Completed, task.Deleted, task.CreatedAt.UTC(), task.UpdatedAt.UTC())
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.Int("priority", task.Priority))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var row taskRow
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND deleted = 0`
	if err := sqlx.GetContext(ctx, s.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return row.toDomain(), nil
}

// GetForUpdate implements store.TaskStore.GetForUpdate. The write lock is held
// by the surrounding IMMEDIATE transaction.
func (s *TaskStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.GetByID(ctx, id)
}

// Update implements store.TaskStore.Update.
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, status = ?, completed = ?, updated_at = ?
		WHERE id = ? AND deleted = 0`
	result, err := s.db.ExecContext(ctx, query,
		task.Title, task.Description, task.Priority, string(task.Status), task.Completed,
		task.UpdatedAt.UTC(), task.ID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrTaskNotFound)
}

// SoftDelete implements store.TaskStore.SoftDelete.
func (s *TaskStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE tasks SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrTaskNotFound)
}

// List implements store.TaskStore.List.
func (s *TaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	var (
		where = []string{"user_id = ?", "deleted = 0"}
		args  = []any{filter.UserID}
	)

	switch filter.View {
	case store.TaskViewCompleted:
		where = append(where, "completed = 1")
	case store.TaskViewAll:
	default:
		where = append(where, "completed = 0")
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, "title LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(strings.ToUpper(search))+"%")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY priority ASC, created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	var rows []taskRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("user_id", filter.UserID.String()))
		return nil, MapError(err)
	}

	tasks := make([]*domain.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toDomain())
	}
	return tasks, nil
}

// Summary implements store.TaskStore.Summary.
func (s *TaskStore) Summary(ctx context.Context, userID uuid.UUID) (domain.TaskSummary, error) {
	var summary domain.TaskSummary
	query := `
		SELECT COUNT(*) AS total, COALESCE(SUM(completed), 0) AS completed
		FROM tasks WHERE user_id = ? AND deleted = 0`
	row := struct {
		Total     int `db:"total"`
		Completed int `db:"completed"`
	}{}
	if err := sqlx.GetContext(ctx, s.db, &row, query, userID); err != nil {
		return summary, MapError(err)
	}
	summary.Total = row.Total
	summary.Completed = row.Completed
	return summary, nil
}

// CountPendingByStatus implements store.TaskStore.CountPendingByStatus.
func (s *TaskStore) CountPendingByStatus(ctx context.Context, userID uuid.UUID) ([]domain.StatusCount, error) {
	query := `
		SELECT status, COUNT(*) AS total
		FROM tasks
		WHERE user_id = ? AND deleted = 0 AND completed = 0
		GROUP BY status
		ORDER BY total ASC, status ASC`
	var rows []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, userID); err != nil {
		return nil, MapError(err)
	}

	counts := make([]domain.StatusCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, domain.StatusCount{Status: domain.TaskStatus(r.Status), Total: r.Total})
	}
	return counts, nil
}

// AppendHistory implements store.TaskStore.AppendHistory.
func (s *TaskStore) AppendHistory(ctx context.Context, change *domain.StatusChange) error {
	query := `INSERT INTO task_history (task_id, old_status, new_status, changed_at) VALUES (?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query,
		change.TaskID, string(change.OldStatus), string(change.NewStatus), change.ChangedAt.UTC())
	if err != nil {
		return MapError(err)
	}
	if id, err := result.LastInsertId(); err == nil {
		change.ID = id
	}
	return nil
}

// ListHistory implements store.TaskStore.ListHistory.
func (s *TaskStore) ListHistory(ctx context.Context, taskID uuid.UUID) ([]*domain.StatusChange, error) {
	query := `
		SELECT id, task_id, old_status, new_status, changed_at
		FROM task_history WHERE task_id = ? ORDER BY changed_at ASC, id ASC`
	var rows []historyRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, taskID); err != nil {
		return nil, MapError(err)
	}

	changes := make([]*domain.StatusChange, 0, len(rows))
	for _, r := range rows {
		changes = append(changes, &domain.StatusChange{
			ID:        r.ID,
			TaskID:    r.TaskID,
			OldStatus: domain.TaskStatus(r.OldStatus),
			NewStatus: domain.TaskStatus(r.NewStatus),
			ChangedAt: r.ChangedAt.UTC(),
		})
	}
	return changes, nil
}

// SelectForUpdate implements cascade.Store.SelectForUpdate.
func (s *TaskStore) SelectForUpdate(
	ctx context.Context,
	ownerID uuid.UUID,
	minPriority int,
	excludeID uuid.UUID,
) ([]cascade.Candidate, error) {
	query := `
		SELECT id, priority, created_at
		FROM tasks
		WHERE user_id = ? AND deleted = 0 AND completed = 0 AND priority >= ? AND id <> ?
		ORDER BY priority ASC, created_at DESC, id ASC`
	var rows []candidateRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, ownerID, minPriority, excludeID); err != nil {
		return nil, store.NewStoreError("task", "select_for_update", "failed to read cascade candidates", MapError(err))
	}

	candidates := make([]cascade.Candidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, cascade.Candidate{
			ID:        r.ID,
			Priority:  r.Priority,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return candidates, nil
}

// BatchUpdatePriority implements cascade.Store.BatchUpdatePriority with a
// single CASE statement.
func (s *TaskStore) BatchUpdatePriority(ctx context.Context, changes []cascade.Change) error {
	if len(changes) == 0 {
		return nil
	}

	var (
		cases strings.Builder
		args  = make([]any, 0, len(changes)*3+1)
		ids   = make([]any, 0, len(changes))
	)
	for _, ch := range changes {
		cases.WriteString(" WHEN ? THEN ?")
		args = append(args, ch.ID, ch.NewPriority)
		ids = append(ids, ch.ID)
	}
	args = append(args, time.Now().UTC())

	query, inArgs, err := sqlx.In(
		`UPDATE tasks SET priority = CASE id`+cases.String()+` END, updated_at = ? WHERE id IN (?)`,
		append(args, ids)...,
	)
	if err != nil {
		return fmt.Errorf("failed to build batch update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, inArgs...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to batch update priorities",
			slog.String("error", err.Error()),
			slog.Int("changes", len(changes)))
		return store.NewStoreError("task", "batch_update_priority", "failed to update priorities", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if int(affected) != len(changes) {
		return store.NewStoreError("task", "batch_update_priority",
			fmt.Sprintf("updated %d of %d tasks", affected, len(changes)), store.ErrUpdateFailed)
	}
	return nil
}

func checkRowsAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
