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

// ElementService moves tasks, time slots and job searches between categories.
type ElementService struct {
	store    ports.Store
	subtasks *SubtaskTracker
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewElementService(store ports.Store, subtasks *SubtaskTracker, m *metrics.Metrics, log *logger.Logger) *ElementService {
	return &ElementService{
		store:    store,
		subtasks: subtasks,
		metrics:  m,
		logger:   log.WithComponent("elements"),
		now:      time.Now,
	}
}

// UpdatePosition sets the category of the element addressed by slug. The
// slug is resolved as a task first, then a time slot, then a job search.
func (s *ElementService) UpdatePosition(ctx context.Context, userID uuid.UUID, slug, position string) (*ports.PositionResult, error) {
	category, err := entities.ParseCategory(position)
	if err != nil {
		return nil, err
	}

	task, err := s.store.Tasks().GetBySlug(ctx, slug)
	if err == nil {
		return s.moveTask(ctx, userID, task, category)
	}
	if !errors.Is(err, entities.ErrTaskNotFound) {
		return nil, fmt.Errorf("failed to look up task: %w", err)
	}

	slot, err := s.store.TimeSlots().GetBySlug(ctx, slug)
	if err == nil {
		return s.moveOwned(ctx, userID, entities.ElementTimeSlot, slug, slot.ID, category,
			s.store.TimeSlots().IsOwner, s.store.TimeSlots().UpdateCategory)
	}
	if !errors.Is(err, entities.ErrElementNotFound) {
		return nil, fmt.Errorf("failed to look up time slot: %w", err)
	}

	js, err := s.store.JobSearches().GetBySlug(ctx, slug)
	if err == nil {
		return s.moveOwned(ctx, userID, entities.ElementJobSearch, slug, js.ID, category,
			s.store.JobSearches().IsOwner, s.store.JobSearches().UpdateCategory)
	}
	if !errors.Is(err, entities.ErrElementNotFound) {
		return nil, fmt.Errorf("failed to look up job search: %w", err)
	}

	return nil, entities.ErrElementNotFound
}

func (s *ElementService) moveTask(ctx context.Context, userID uuid.UUID, task *entities.Task, category entities.Category) (*ports.PositionResult, error) {
	var from entities.Category

	err := s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		tc, created, err := ownContext(ctx, repos, task, userID)
		if err != nil {
			return err
		}
		from = tc.Category

		wasAgenda := task.IsAgenda
		tc.MoveTo(task, category, s.now().UTC())

		if created {
			err = repos.Contexts().Create(ctx, tc)
		} else {
			err = repos.Contexts().Update(ctx, tc)
		}
		if err != nil {
			return err
		}

		if task.IsAgenda != wasAgenda {
			if err := repos.Tasks().SetAgenda(ctx, task.ID, task.IsAgenda); err != nil {
				return err
			}
		}

		if task.ParentID != nil {
			return s.subtasks.Recompute(ctx, repos.Tasks(), *task.ParentID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, entities.ErrForbidden) {
			s.logger.LogSecurityEvent("position_denied", userID.String(), "", map[string]interface{}{
				"slug": task.Slug,
			})
		}
		return nil, err
	}

	if task.ParentID != nil {
		s.subtasks.Invalidate(ctx, *task.ParentID)
	}

	s.recordMove(userID, entities.ElementTask, task.Slug, from, category)

	return &ports.PositionResult{
		Success:     true,
		Position:    category,
		ElementType: entities.ElementTask,
		Slug:        task.Slug,
	}, nil
}

func (s *ElementService) moveOwned(
	ctx context.Context,
	userID uuid.UUID,
	elementType entities.ElementType,
	slug string,
	id int64,
	category entities.Category,
	isOwner func(context.Context, int64, uuid.UUID) (bool, error),
	update func(context.Context, int64, entities.Category) error,
) (*ports.PositionResult, error) {
	owner, err := isOwner(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check ownership: %w", err)
	}
	if !owner {
		s.logger.LogSecurityEvent("position_denied", userID.String(), "", map[string]interface{}{
			"slug":         slug,
			"element_type": elementType,
		})
		return nil, entities.ErrForbidden
	}

	if err := update(ctx, id, category); err != nil {
		return nil, err
	}

	s.recordMove(userID, elementType, slug, "", category)

	return &ports.PositionResult{
		Success:     true,
		Position:    category,
		ElementType: elementType,
		Slug:        slug,
	}, nil
}

func (s *ElementService) recordMove(userID uuid.UUID, elementType entities.ElementType, slug string, from, to entities.Category) {
	s.metrics.CategoryTransition(string(elementType), string(to))

	meta := map[string]interface{}{
		"element_type": elementType,
		"slug":         slug,
		"position":     to,
	}
	if from != "" {
		meta["from"] = from
	}
	s.logger.LogUserAction(userID.String(), "element_moved", meta)
}
