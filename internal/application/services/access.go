package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/taskmaster/gtd/internal/domain/entities"
	"github.com/taskmaster/gtd/internal/ports"
)

// initialCategory is where a task first appears for a new context.
func initialCategory(task *entities.Task) entities.Category {
	if task.IsSubtask() {
		return entities.CategorySubtask
	}
	return entities.CategoryInbox
}

// ownContext returns the user's context on task. A user listed in
// task_owners without a context gets a fresh owner context, reported by
// created and not yet persisted. Anyone else is refused.
func ownContext(ctx context.Context, repos ports.Repositories, task *entities.Task, userID uuid.UUID) (tc *entities.UserTaskContext, created bool, err error) {
	tc, err = repos.Contexts().Get(ctx, userID, task.ID)
	if err == nil {
		return tc, false, nil
	}
	if !errors.Is(err, entities.ErrContextNotFound) {
		return nil, false, err
	}

	owner, err := repos.Tasks().IsOwner(ctx, task.ID, userID)
	if err != nil {
		return nil, false, err
	}
	if !owner {
		return nil, false, entities.ErrForbidden
	}

	return &entities.UserTaskContext{
		UserID:    userID,
		TaskID:    task.ID,
		Category:  initialCategory(task),
		Role:      entities.RoleOwner,
		IsVisible: true,
	}, true, nil
}

// canView reports whether the user holds a context or an owner row on the task.
func canView(ctx context.Context, repos ports.Repositories, taskID int64, userID uuid.UUID) (bool, error) {
	_, err := repos.Contexts().Get(ctx, userID, taskID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, entities.ErrContextNotFound) {
		return false, err
	}
	return repos.Tasks().IsOwner(ctx, taskID, userID)
}

// isTaskOwner reports whether the user owns the task, either through
// task_owners or through an owner-role context.
func isTaskOwner(ctx context.Context, repos ports.Repositories, taskID int64, userID uuid.UUID) (bool, error) {
	owner, err := repos.Tasks().IsOwner(ctx, taskID, userID)
	if err != nil || owner {
		return owner, err
	}

	tc, err := repos.Contexts().Get(ctx, userID, taskID)
	if errors.Is(err, entities.ErrContextNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return tc.Role == entities.RoleOwner, nil
}

func parseOptionalCategory(name string) (*entities.Category, error) {
	if name == "" {
		return nil, nil
	}
	c, err := entities.ParseCategory(name)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
