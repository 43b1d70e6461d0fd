package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/cascade"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/phrazzld/tasks-api/internal/store"
)

const taskColumns = `id, user_id, title, description, priority, status, completed, deleted, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db          store.DBTX
	logger      *slog.Logger
	lockTimeout time.Duration
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// lockTimeout bounds how long LockOwner and SelectForUpdate wait for locks; zero
// leaves the server default. If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, lockTimeout time.Duration, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:          db,
		logger:      logger.With(slog.String("component", "task_store")),
		lockTimeout: lockTimeout,
	}
}

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:          tx,
		logger:      s.logger,
		lockTimeout: s.lockTimeout,
	}
}

// ownerLockKey folds all sixteen bytes of the owner's UUID into the bigint
// advisory lock key space.
func ownerLockKey(userID uuid.UUID) int64 {
	hi := binary.BigEndian.Uint64(userID[:8])
	lo := binary.BigEndian.Uint64(userID[8:])
	return int64(hi ^ lo)
}

// LockOwner implements store.TaskStore.LockOwner with a transaction-scoped
// advisory lock. Advisory locks are re-entrant within a transaction.
func (s *PostgresTaskStore) LockOwner(ctx context.Context, userID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if s.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := s.db.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
			return MapError(err)
		}
	}

	if _, err := s.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ownerLockKey(userID)); err != nil {
		log.Warn("failed to acquire owner lock",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return MapError(err)
	}
	return nil
}

func scanTask(row interface{ Scan(dest ...any) error }) (*domain.Task, error) {
	var (
		t      domain.Task
		status string
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Priority,
		&status,
		&t.Completed,
		&t.Deleted,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// Create implements store.TaskStore.Create.
// It assigns an ID when the task has none.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Priority,
		string(task.Status),
		task.Completed,
		task.Deleted,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.String("user_id", task.UserID.String()))
		return MapError(err)
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.Int("priority", task.Priority))
	return nil
}

func (s *PostgresTaskStore) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND deleted = FALSE`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return task, nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.get(ctx, id, false)
}

// GetForUpdate implements store.TaskStore.GetForUpdate.
func (s *PostgresTaskStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.get(ctx, id, true)
}

// Update implements store.TaskStore.Update.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET title = $1, description = $2, priority = $3, status = $4, completed = $5, updated_at = $6
		WHERE id = $7 AND deleted = FALSE
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.Priority,
		string(task.Status),
		task.Completed,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// SoftDelete implements store.TaskStore.SoftDelete.
func (s *PostgresTaskStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE tasks SET deleted = TRUE, updated_at = $1 WHERE id = $2 AND deleted = FALSE`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// List implements store.TaskStore.List.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		where = []string{"user_id = $1", "deleted = FALSE"}
		args  = []any{filter.UserID}
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch filter.View {
	case store.TaskViewCompleted:
		where = append(where, "completed = TRUE")
	case store.TaskViewAll:
	default:
		where = append(where, "completed = FALSE")
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, "title ILIKE "+next("%"+escapeLike(search)+"%"))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY priority ASC, created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += " LIMIT " + next(filter.Limit) + " OFFSET " + next(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("user_id", filter.UserID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return tasks, nil
}

// Summary implements store.TaskStore.Summary.
func (s *PostgresTaskStore) Summary(ctx context.Context, userID uuid.UUID) (domain.TaskSummary, error) {
	var summary domain.TaskSummary
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE completed)
		FROM tasks WHERE user_id = $1 AND deleted = FALSE
	`
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&summary.Total, &summary.Completed); err != nil {
		return summary, MapError(err)
	}
	return summary, nil
}

// CountPendingByStatus implements store.TaskStore.CountPendingByStatus.
func (s *PostgresTaskStore) CountPendingByStatus(ctx context.Context, userID uuid.UUID) ([]domain.StatusCount, error) {
	query := `
		SELECT status, COUNT(*) AS total
		FROM tasks
		WHERE user_id = $1 AND deleted = FALSE AND completed = FALSE
		GROUP BY status
		ORDER BY total ASC, status ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var counts []domain.StatusCount
	for rows.Next() {
		var (
			status string
			total  int
		)
		if err := rows.Scan(&status, &total); err != nil {
			return nil, MapError(err)
		}
		counts = append(counts, domain.StatusCount{Status: domain.TaskStatus(status), Total: total})
	}
	return counts, MapError(rows.Err())
}

// AppendHistory implements store.TaskStore.AppendHistory.
func (s *PostgresTaskStore) AppendHistory(ctx context.Context, change *domain.StatusChange) error {
	query := `
		INSERT INTO task_history (task_id, old_status, new_status, changed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		change.TaskID,
		string(change.OldStatus),
		string(change.NewStatus),
		change.ChangedAt,
	).Scan(&change.ID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to append task history",
			slog.String("error", err.Error()),
			slog.String("task_id", change.TaskID.String()))
		return MapError(err)
	}
	return nil
}

// ListHistory implements store.TaskStore.ListHistory.
func (s *PostgresTaskStore) ListHistory(ctx context.Context, taskID uuid.UUID) ([]*domain.StatusChange, error) {
	query := `
		SELECT id, task_id, old_status, new_status, changed_at
		FROM task_history
		WHERE task_id = $1
		ORDER BY changed_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var changes []*domain.StatusChange
	for rows.Next() {
		var (
			c              domain.StatusChange
			oldSt, newStat string
		)
		if err := rows.Scan(&c.ID, &c.TaskID, &oldSt, &newStat, &c.ChangedAt); err != nil {
			return nil, MapError(err)
		}
		c.OldStatus = domain.TaskStatus(oldSt)
		c.NewStatus = domain.TaskStatus(newStat)
		c.ChangedAt = c.ChangedAt.UTC()
		changes = append(changes, &c)
	}
	return changes, MapError(rows.Err())
}

// SelectForUpdate implements cascade.Store.SelectForUpdate.
// It takes the owner's advisory lock first so that concurrent writers for the
// same owner cannot both see an empty conflict set, then row-locks the set.
func (s *PostgresTaskStore) SelectForUpdate(
	ctx context.Context,
	ownerID uuid.UUID,
	minPriority int,
	excludeID uuid.UUID,
) ([]cascade.Candidate, error) {
	if err := s.LockOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, priority, created_at
		FROM tasks
		WHERE user_id = $1
		  AND deleted = FALSE
		  AND completed = FALSE
		  AND priority >= $2
		  AND id <> $3
		ORDER BY priority ASC, created_at DESC, id ASC
		FOR UPDATE
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID, minPriority, excludeID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to lock cascade candidates",
			slog.String("error", err.Error()),
			slog.String("user_id", ownerID.String()))
		return nil, store.NewStoreError("task", "select_for_update", "failed to lock cascade candidates", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var candidates []cascade.Candidate
	for rows.Next() {
		var c cascade.Candidate
		if err := rows.Scan(&c.ID, &c.Priority, &c.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return candidates, nil
}

// BatchUpdatePriority implements cascade.Store.BatchUpdatePriority with one
// UPDATE joined against unnest() of the changes.
func (s *PostgresTaskStore) BatchUpdatePriority(ctx context.Context, changes []cascade.Change) error {
	if len(changes) == 0 {
		return nil
	}

	ids := make([]string, 0, len(changes))
	priorities := make([]int64, 0, len(changes))
	for _, ch := range changes {
		ids = append(ids, ch.ID.String())
		priorities = append(priorities, int64(ch.NewPriority))
	}

	query := `
		UPDATE tasks AS t
		SET priority = v.priority::int, updated_at = $3
		FROM unnest($1::text[], $2::bigint[]) AS v(id, priority)
		WHERE t.id = v.id::uuid
	`
	result, err := s.db.ExecContext(ctx, query, ids, priorities, time.Now().UTC())
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

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
