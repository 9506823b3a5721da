package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/gtd/internal/domain/entities"
	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/infrastructure/metrics"
	"github.com/taskmaster/gtd/internal/ports"
)

// SubtaskTracker keeps parent tasks' subtasks_meta and the cached subtask
// listings in step with child mutations.
type SubtaskTracker struct {
	cache   ports.SubtaskCache
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

func NewSubtaskTracker(cache ports.SubtaskCache, m *metrics.Metrics, log *logger.Logger) *SubtaskTracker {
	return &SubtaskTracker{
		cache:   cache,
		metrics: m,
		logger:  log.WithComponent("subtasks"),
		now:     time.Now,
	}
}

// Recompute rewrites the parent's summary using the given repository, which
// may be bound to the caller's transaction.
func (t *SubtaskTracker) Recompute(ctx context.Context, tasks ports.TaskRepository, parentID int64) error {
	if _, err := tasks.RecomputeSubtasksMeta(ctx, parentID, t.now().UTC()); err != nil {
		return fmt.Errorf("failed to recompute subtasks meta for task %d: %w", parentID, err)
	}
	return nil
}

// Invalidate drops cached listings for the given parents. Failures are logged
// only; entries expire on their own.
func (t *SubtaskTracker) Invalidate(ctx context.Context, parentIDs ...int64) {
	for _, id := range parentIDs {
		if err := t.cache.Invalidate(ctx, id); err != nil {
			t.logger.Warnw("Failed to invalidate subtask cache", "parent_id", id, "error", err)
		}
	}
}

// Refresh recomputes outside of any transaction and invalidates afterwards.
// A parent that no longer exists is skipped.
func (t *SubtaskTracker) Refresh(ctx context.Context, tasks ports.TaskRepository, parentIDs ...int64) error {
	for _, id := range parentIDs {
		err := t.Recompute(ctx, tasks, id)
		if err != nil && !errors.Is(err, entities.ErrParentNotFound) {
			return err
		}
		t.Invalidate(ctx, id)
	}
	return nil
}

// Cached returns the user's subtask rows for parentID, reading through the cache.
func (t *SubtaskTracker) Cached(ctx context.Context, tasks ports.TaskRepository, parentID int64, userID uuid.UUID) ([]entities.TaskView, error) {
	rows, ok, err := t.cache.Get(ctx, parentID, userID)
	switch {
	case err != nil:
		t.metrics.SubtaskCacheResult("error")
		t.logger.Warnw("Subtask cache read failed", "parent_id", parentID, "error", err)
	case ok:
		t.metrics.SubtaskCacheResult("hit")
		return rows, nil
	default:
		t.metrics.SubtaskCacheResult("miss")
	}

	rows, err = tasks.ListSubtaskViews(ctx, parentID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subtasks: %w", err)
	}

	if err := t.cache.Set(ctx, parentID, userID, rows); err != nil {
		t.logger.Warnw("Subtask cache write failed", "parent_id", parentID, "error", err)
	}

	return rows, nil
}

// RebuildAll recomputes the summary of every task that has children.
func (t *SubtaskTracker) RebuildAll(ctx context.Context, tasks ports.TaskRepository) (int, error) {
	ids, err := tasks.ListParentIDs(ctx)
	if err != nil {
		return 0, err
	}

	rebuilt := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}
		if err := t.Refresh(ctx, tasks, id); err != nil {
			return rebuilt, err
		}
		rebuilt++
	}

	t.metrics.MetaRebuilt(rebuilt)
	t.logger.Infow("Subtasks meta rebuilt", "parents", rebuilt)

	return rebuilt, nil
}
