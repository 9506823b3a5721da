package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskmaster/gtd/internal/domain/entities"
	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/infrastructure/metrics"
	"github.com/taskmaster/gtd/internal/ports"
)

// UserService handles user-related operations
type UserService struct {
	store    ports.Store
	subtasks *SubtaskTracker
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(store ports.Store, subtasks *SubtaskTracker, m *metrics.Metrics, log *logger.Logger) *UserService {
	return &UserService{
		store:    store,
		subtasks: subtasks,
		metrics:  m,
		logger:   log.WithComponent("users"),
	}
}

// CreateUser creates a new user
func (s *UserService) CreateUser(ctx context.Context, req ports.CreateUserRequest) (*entities.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return nil, entities.ErrUserAlreadyExists
	} else if !errors.Is(err, entities.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, entities.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Infow("User created successfully", "user_id", user.ID, "email", user.Email)

	// Remove password hash from response
	user.PasswordHash = ""

	return user, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// DeleteUser removes the account and anonymizes what it created.
//
// Tasks the user owns lose their creator attribution. A task somebody else
// still works on survives without the departing user's context; any other
// owned task is deleted together with its subtasks. Every remaining context
// of the user is dropped before the account row itself.
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) (*entities.AnonymizationStats, error) {
	if _, err := s.store.Users().GetByID(ctx, id); err != nil {
		return nil, err
	}

	stats := &entities.AnonymizationStats{}
	parents := make(map[int64]struct{})

	err := s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		*stats = entities.AnonymizationStats{}
		for k := range parents {
			delete(parents, k)
		}

		owned, err := repos.Contexts().ListByUserAndRole(ctx, id, entities.RoleOwner)
		if err != nil {
			return err
		}

		for _, tc := range owned {
			task, err := repos.Tasks().GetByID(ctx, tc.TaskID)
			if errors.Is(err, entities.ErrTaskNotFound) {
				// removed with a parent deleted earlier in this loop
				continue
			}
			if err != nil {
				return err
			}

			task.Anonymize(id)
			stats.TasksAnonymized++
			if task.ParentID != nil {
				parents[*task.ParentID] = struct{}{}
			}

			others, err := repos.Contexts().CountOtherUsers(ctx, task.ID, id)
			if err != nil {
				return err
			}

			if others > 0 {
				if err := repos.Tasks().SaveCreator(ctx, task); err != nil {
					return err
				}
				if err := repos.Contexts().Delete(ctx, tc.ID); err != nil {
					return err
				}
				stats.TasksPreserved++
				stats.ContextsRemoved++
				continue
			}

			if err := repos.Tasks().Delete(ctx, task.ID); err != nil {
				return err
			}
			stats.TasksDeleted++
		}

		for _, role := range []entities.ContextRole{entities.RoleAssignee, entities.RoleCollaborator} {
			shared, err := repos.Contexts().ListByUserAndRole(ctx, id, role)
			if err != nil {
				return err
			}
			for _, tc := range shared {
				task, err := repos.Tasks().GetByID(ctx, tc.TaskID)
				if errors.Is(err, entities.ErrTaskNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if task.ParentID != nil {
					parents[*task.ParentID] = struct{}{}
				}
			}
		}

		removed, err := repos.Contexts().DeleteNonOwnerByUser(ctx, id)
		if err != nil {
			return err
		}
		stats.ContextsRemoved += removed

		return repos.Users().Delete(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	ids := make([]int64, 0, len(parents))
	for pid := range parents {
		ids = append(ids, pid)
	}
	if err := s.subtasks.Refresh(ctx, s.store.Tasks(), ids...); err != nil {
		s.logger.Errorw("Failed to refresh parents after account deletion", "user_id", id, "error", err)
	}

	s.metrics.UserAnonymized()
	s.logger.LogUserAction(id.String(), "account_deleted", map[string]interface{}{
		"tasks_anonymized": stats.TasksAnonymized,
		"tasks_deleted":    stats.TasksDeleted,
		"contexts_removed": stats.ContextsRemoved,
		"tasks_preserved":  stats.TasksPreserved,
	})

	return stats, nil
}

// Statistics aggregates the user's visible task contexts.
func (s *UserService) Statistics(ctx context.Context, id uuid.UUID) (*entities.TaskStatistics, error) {
	contexts, err := s.store.Contexts().ListVisibleByUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task contexts: %w", err)
	}

	stats := &entities.TaskStatistics{
		TotalTasks: len(contexts),
		ByCategory: make(map[entities.Category]int),
		ByRole:     make(map[entities.ContextRole]int),
	}
	for _, tc := range contexts {
		stats.ByCategory[tc.Category]++
		stats.ByRole[tc.Role]++
		if tc.Category == entities.CategoryDone {
			stats.CompletedTasks++
		}
		if tc.DelegatedBy != nil {
			stats.DelegatedTasks++
		}
	}

	return stats, nil
}
