package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
)

// Store is the transaction-scoped storage the engine needs. Implementations
// must be bound to the caller's transaction so that the locks taken by
// SelectForUpdate are held until that transaction ends.
type Store interface {
	// SelectForUpdate returns and locks the owner's active tasks with
	// priority >= minPriority, excluding excludeID when it is not uuid.Nil.
	// Rows are returned in walk order.
	SelectForUpdate(ctx context.Context, ownerID uuid.UUID, minPriority int, excludeID uuid.UUID) ([]Candidate, error)

	// BatchUpdatePriority persists all changes in a single statement.
	BatchUpdatePriority(ctx context.Context, changes []Change) error
}

// Result describes what a cascade did.
type Result struct {
	// Scanned is the number of locked candidate rows.
	Scanned int
	// Changes lists every task whose priority moved.
	Changes []Change
}

// Engine runs priority cascades against a transaction-scoped Store.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	mode   Mode
	logger *slog.Logger
}

// NewEngine creates an Engine. If logger is nil, slog.Default() is used.
func NewEngine(mode Mode, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		mode:   mode,
		logger: logger.With(slog.String("component", "cascade_engine")),
	}
}

// Mode returns the increment mode the engine was built with.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Resolve makes room for priority among the owner's active tasks. excludeID is
// the task being written, or uuid.Nil when it has not been stored yet.
//
// Resolve must run inside the transaction that writes the triggering task; it
// neither commits nor rolls back. Any store error is returned as-is so the
// caller's transaction is rolled back with no partial reassignment.
func (e *Engine) Resolve(
	ctx context.Context,
	s Store,
	ownerID uuid.UUID,
	priority int,
	excludeID uuid.UUID,
) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	candidates, err := s.SelectForUpdate(ctx, ownerID, priority, excludeID)
	if err != nil {
		log.Error("failed to lock cascade candidates",
			slog.String("error", err.Error()),
			slog.String("user_id", ownerID.String()),
			slog.Int("priority", priority))
		return nil, fmt.Errorf("failed to lock cascade candidates: %w", err)
	}

	result := &Result{Scanned: len(candidates)}
	if len(candidates) == 0 {
		log.Debug("cascade has no candidates",
			slog.String("user_id", ownerID.String()),
			slog.Int("priority", priority))
		return result, nil
	}

	SortCandidates(candidates)
	result.Changes = Plan(e.mode, priority, candidates)

	if len(result.Changes) == 0 {
		log.Debug("cascade found no conflicts",
			slog.String("user_id", ownerID.String()),
			slog.Int("priority", priority),
			slog.Int("scanned", result.Scanned))
		return result, nil
	}

	if err := s.BatchUpdatePriority(ctx, result.Changes); err != nil {
		log.Error("failed to persist cascade changes",
			slog.String("error", err.Error()),
			slog.String("user_id", ownerID.String()),
			slog.Int("changes", len(result.Changes)))
		return nil, fmt.Errorf("failed to persist cascade changes: %w", err)
	}

	log.Info("priority cascade applied",
		slog.String("user_id", ownerID.String()),
		slog.Int("priority", priority),
		slog.Int("scanned", result.Scanned),
		slog.Int("changed", len(result.Changes)),
		slog.String("mode", e.mode.String()))

	return result, nil
}
