package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskmaster/gtd/internal/domain/entities"
	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/ports"
)

// TaskService handles task-related operations
type TaskService struct {
	store    ports.Store
	subtasks *SubtaskTracker
	logger   *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(store ports.Store, subtasks *SubtaskTracker, log *logger.Logger) *TaskService {
	return &TaskService{
		store:    store,
		subtasks: subtasks,
		logger:   log.WithComponent("tasks"),
	}
}

// CreateTask creates a task owned by userID. With a parent slug the task
// becomes a subtask and the parent's summary is recomputed.
func (s *TaskService) CreateTask(ctx context.Context, userID uuid.UUID, req ports.CreateTaskRequest) (*entities.Task, error) {
	task := &entities.Task{
		Slug:              entities.NewSlug(req.Title),
		Title:             strings.TrimSpace(req.Title),
		Description:       req.Description,
		Priority:          req.Priority,
		TaskMode:          req.TaskMode,
		CardTemplate:      req.CardTemplate,
		StartDatetime:     req.StartDatetime,
		EndDatetime:       req.EndDatetime,
		RecurrencePattern: req.RecurrencePattern,
		CreatorID:         &userID,
	}
	if task.TaskMode == "" {
		task.TaskMode = entities.TaskModeDraft
	}
	if task.CardTemplate == "" {
		task.CardTemplate = entities.CardTemplateTask
	}
	if err := validateTask(task); err != nil {
		return nil, err
	}

	if req.ParentSlug != nil && *req.ParentSlug != "" {
		parent, err := s.resolveParent(ctx, userID, *req.ParentSlug)
		if err != nil {
			return nil, err
		}
		task.ParentID = &parent.ID
	}

	tags := normalizeHashtags(req.Hashtags)

	err := s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		if err := repos.Tasks().Create(ctx, task); err != nil {
			return err
		}
		if err := repos.Tasks().AddOwner(ctx, task.ID, userID); err != nil {
			return err
		}

		tc := &entities.UserTaskContext{
			UserID:    userID,
			TaskID:    task.ID,
			Category:  initialCategory(task),
			Role:      entities.RoleOwner,
			IsVisible: true,
		}
		if err := repos.Contexts().Create(ctx, tc); err != nil {
			return err
		}

		if len(tags) > 0 {
			if err := repos.Tasks().SetHashtags(ctx, task.ID, tags); err != nil {
				return err
			}
		}

		if task.ParentID != nil {
			return s.subtasks.Recompute(ctx, repos.Tasks(), *task.ParentID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if task.ParentID != nil {
		s.subtasks.Invalidate(ctx, *task.ParentID)
	}
	s.attachHashtags(ctx, task)

	s.logger.LogUserAction(userID.String(), "task_created", map[string]interface{}{
		"task_id": task.ID,
		"slug":    task.Slug,
	})

	return task, nil
}

// UpdateTask applies a partial update. Only owners may edit a task.
func (s *TaskService) UpdateTask(ctx context.Context, userID uuid.UUID, slug string, req ports.UpdateTaskRequest) (*entities.Task, error) {
	task, err := s.ownedTask(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	oldParent := task.ParentID

	if req.Title != nil {
		task.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		task.Priority = req.Priority
	}
	if req.TaskMode != nil {
		task.TaskMode = *req.TaskMode
	}
	if req.StartDatetime != nil {
		task.StartDatetime = req.StartDatetime
	}
	if req.EndDatetime != nil {
		task.EndDatetime = req.EndDatetime
	}
	if req.RecurrencePattern != nil {
		task.RecurrencePattern = req.RecurrencePattern
	}
	if err := validateTask(task); err != nil {
		return nil, err
	}

	if req.ParentSlug != nil {
		if *req.ParentSlug == "" {
			task.ParentID = nil
		} else {
			parent, err := s.resolveParent(ctx, userID, *req.ParentSlug)
			if err != nil {
				return nil, err
			}
			if err := s.checkAncestry(ctx, task.ID, parent); err != nil {
				return nil, err
			}
			task.ParentID = &parent.ID
		}
	}

	parents := touchedParents(oldParent, task.ParentID)

	err = s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		if err := repos.Tasks().Update(ctx, task); err != nil {
			return err
		}
		if req.Hashtags != nil {
			if err := repos.Tasks().SetHashtags(ctx, task.ID, normalizeHashtags(req.Hashtags)); err != nil {
				return err
			}
		}
		for _, id := range parents {
			if err := s.subtasks.Recompute(ctx, repos.Tasks(), id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.subtasks.Invalidate(ctx, parents...)
	s.attachHashtags(ctx, task)

	s.logger.LogUserAction(userID.String(), "task_updated", map[string]interface{}{
		"task_id": task.ID,
		"slug":    task.Slug,
	})

	return task, nil
}

// DeleteTask removes a task with its photos, links, contexts and subtasks.
func (s *TaskService) DeleteTask(ctx context.Context, userID uuid.UUID, slug string) error {
	task, err := s.ownedTask(ctx, userID, slug)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		if err := repos.Tasks().Delete(ctx, task.ID); err != nil {
			return err
		}
		if task.ParentID != nil {
			return s.subtasks.Recompute(ctx, repos.Tasks(), *task.ParentID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.subtasks.Invalidate(ctx, task.ID)
	if task.ParentID != nil {
		s.subtasks.Invalidate(ctx, *task.ParentID)
	}

	s.logger.LogUserAction(userID.String(), "task_deleted", map[string]interface{}{
		"task_id": task.ID,
		"slug":    task.Slug,
	})

	return nil
}

// ListUserTasks returns the user's visible tasks, optionally in one category.
func (s *TaskService) ListUserTasks(ctx context.Context, userID uuid.UUID, category string) ([]entities.TaskView, error) {
	filter, err := parseOptionalCategory(category)
	if err != nil {
		return nil, err
	}

	views, err := s.store.Tasks().ListUserTasks(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return views, nil
}

// GetSubtasks returns the caller's view of a parent's subtasks.
func (s *TaskService) GetSubtasks(ctx context.Context, userID uuid.UUID, parentSlug string) ([]entities.TaskView, error) {
	parent, err := s.store.Tasks().GetBySlug(ctx, parentSlug)
	if err != nil {
		return nil, err
	}

	ok, err := canView(ctx, s.store, parent.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check access: %w", err)
	}
	if !ok {
		return nil, entities.ErrForbidden
	}

	return s.subtasks.Cached(ctx, s.store.Tasks(), parent.ID, userID)
}

// SaveNote stores the caller's personal note on a task.
func (s *TaskService) SaveNote(ctx context.Context, userID uuid.UUID, slug string, note string) (*entities.UserTaskContext, error) {
	task, err := s.store.Tasks().GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	var tc *entities.UserTaskContext
	err = s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		var created bool
		var err error
		tc, created, err = ownContext(ctx, repos, task, userID)
		if err != nil {
			return err
		}

		tc.PersonalNote = &note
		if created {
			return repos.Contexts().Create(ctx, tc)
		}
		return repos.Contexts().Update(ctx, tc)
	})
	if err != nil {
		return nil, err
	}

	if task.ParentID != nil {
		s.subtasks.Invalidate(ctx, *task.ParentID)
	}

	return tc, nil
}

// DelegateTask hands a task to another user as assignee. An existing
// context of the target keeps its category and role.
func (s *TaskService) DelegateTask(ctx context.Context, fromUserID uuid.UUID, slug string, req ports.DelegateTaskRequest) (*entities.UserTaskContext, error) {
	if req.UserID == fromUserID {
		return nil, entities.ErrSelfDelegation
	}

	category := entities.CategoryBacklog
	if req.Category != "" {
		c, err := entities.ParseCategory(req.Category)
		if err != nil {
			return nil, err
		}
		category = c
	}

	task, err := s.ownedTask(ctx, fromUserID, slug)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Users().GetByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	var tc *entities.UserTaskContext
	err = s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		existing, err := repos.Contexts().Get(ctx, req.UserID, task.ID)
		switch {
		case err == nil:
			existing.DelegatedBy = &fromUserID
			existing.IsVisible = true
			if err := repos.Contexts().Update(ctx, existing); err != nil {
				return err
			}
			tc = existing
		case errors.Is(err, entities.ErrContextNotFound):
			tc = &entities.UserTaskContext{
				UserID:      req.UserID,
				TaskID:      task.ID,
				Category:    category,
				Role:        entities.RoleAssignee,
				DelegatedBy: &fromUserID,
				IsVisible:   true,
			}
			if err := repos.Contexts().Create(ctx, tc); err != nil {
				return err
			}
		default:
			return err
		}

		if task.ParentID != nil {
			return s.subtasks.Recompute(ctx, repos.Tasks(), *task.ParentID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delegate task: %w", err)
	}

	if task.ParentID != nil {
		s.subtasks.Invalidate(ctx, *task.ParentID)
	}

	s.logger.LogUserAction(fromUserID.String(), "task_delegated", map[string]interface{}{
		"task_id":  task.ID,
		"slug":     task.Slug,
		"assignee": req.UserID.String(),
	})

	return tc, nil
}

// RebuildSubtasksMeta recomputes the summary of every parent task.
func (s *TaskService) RebuildSubtasksMeta(ctx context.Context) (int, error) {
	n, err := s.subtasks.RebuildAll(ctx, s.store.Tasks())
	if err != nil {
		return n, fmt.Errorf("failed to rebuild subtasks meta: %w", err)
	}
	return n, nil
}

func (s *TaskService) ownedTask(ctx context.Context, userID uuid.UUID, slug string) (*entities.Task, error) {
	task, err := s.store.Tasks().GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	owner, err := isTaskOwner(ctx, s.store, task.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check ownership: %w", err)
	}
	if !owner {
		s.logger.LogSecurityEvent("task_access_denied", userID.String(), "", map[string]interface{}{
			"slug": slug,
		})
		return nil, entities.ErrForbidden
	}

	return task, nil
}

func (s *TaskService) resolveParent(ctx context.Context, userID uuid.UUID, slug string) (*entities.Task, error) {
	parent, err := s.store.Tasks().GetBySlug(ctx, slug)
	if errors.Is(err, entities.ErrTaskNotFound) {
		return nil, entities.ErrParentNotFound
	}
	if err != nil {
		return nil, err
	}

	ok, err := canView(ctx, s.store, parent.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check access: %w", err)
	}
	if !ok {
		return nil, entities.ErrForbidden
	}

	return parent, nil
}

func (s *TaskService) attachHashtags(ctx context.Context, task *entities.Task) {
	tags, err := s.store.Tasks().ListHashtags(ctx, []int64{task.ID})
	if err != nil {
		s.logger.Warnw("Failed to load hashtags", "task_id", task.ID, "error", err)
		return
	}
	task.Hashtags = tags[task.ID]
	if task.Hashtags == nil {
		task.Hashtags = []entities.Hashtag{}
	}
}

// checkAncestry walks up from parent and rejects the move when taskID is
// among its ancestors, which would close a loop.
func (s *TaskService) checkAncestry(ctx context.Context, taskID int64, parent *entities.Task) error {
	seen := make(map[int64]struct{})
	for cur := parent; ; {
		if cur.ID == taskID {
			return entities.ErrInvalidParent
		}
		if _, ok := seen[cur.ID]; ok {
			return entities.ErrInvalidParent
		}
		seen[cur.ID] = struct{}{}
		if cur.ParentID == nil {
			return nil
		}

		next, err := s.store.Tasks().GetByID(ctx, *cur.ParentID)
		if err != nil {
			return fmt.Errorf("failed to load ancestor %d: %w", *cur.ParentID, err)
		}
		cur = next
	}
}

func validateTask(task *entities.Task) error {
	if task.Title == "" {
		return entities.ErrEmptyTitle
	}
	if task.Priority != nil && !task.Priority.IsValid() {
		return fmt.Errorf("%w: %q", entities.ErrInvalidPriority, *task.Priority)
	}
	if !task.TaskMode.IsValid() {
		return fmt.Errorf("%w: %q", entities.ErrInvalidTaskMode, task.TaskMode)
	}
	if !task.CardTemplate.IsValid() {
		return fmt.Errorf("%w: %q", entities.ErrInvalidCardTemplate, task.CardTemplate)
	}
	return nil
}

// normalizeHashtags lowercases tags, strips a leading '#' and drops
// blanks and duplicates while keeping the first-seen order.
func normalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func touchedParents(before, after *int64) []int64 {
	var ids []int64
	if before != nil {
		ids = append(ids, *before)
	}
	if after != nil && (before == nil || *after != *before) {
		ids = append(ids, *after)
	}
	return ids
}
