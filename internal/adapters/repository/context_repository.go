package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/gtd/internal/domain/entities"
)

const contextColumns = `id, user_id, task_id, category, role, completed_at, personal_note,
	delegated_by, is_visible, created_at, updated_at`

// TaskContextRepository stores the per-user overlay rows of shared tasks.
type TaskContextRepository struct {
	db sqlx.ExtContext
}

func NewTaskContextRepository(db sqlx.ExtContext) *TaskContextRepository {
	return &TaskContextRepository{db: db}
}

func (r *TaskContextRepository) Get(ctx context.Context, userID uuid.UUID, taskID int64) (*entities.UserTaskContext, error) {
	query := `SELECT ` + contextColumns + ` FROM user_task_contexts WHERE user_id = $1 AND task_id = $2`

	var tc entities.UserTaskContext
	if err := sqlx.GetContext(ctx, r.db, &tc, query, userID, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrContextNotFound
		}
		return nil, fmt.Errorf("get task context: %w", err)
	}

	return &tc, nil
}

func (r *TaskContextRepository) Create(ctx context.Context, tc *entities.UserTaskContext) error {
	query := `
		INSERT INTO user_task_contexts (user_id, task_id, category, role, completed_at,
			personal_note, delegated_by, is_visible)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		tc.UserID, tc.TaskID, tc.Category, tc.Role, tc.CompletedAt,
		tc.PersonalNote, tc.DelegatedBy, tc.IsVisible,
	).Scan(&tc.ID, &tc.CreatedAt, &tc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task context: %w", err)
	}

	return nil
}

func (r *TaskContextRepository) Update(ctx context.Context, tc *entities.UserTaskContext) error {
	query := `
		UPDATE user_task_contexts
		SET category = $2, role = $3, completed_at = $4, personal_note = $5,
			delegated_by = $6, is_visible = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		tc.ID, tc.Category, tc.Role, tc.CompletedAt, tc.PersonalNote, tc.DelegatedBy, tc.IsVisible,
	).Scan(&tc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrContextNotFound
		}
		return fmt.Errorf("update task context: %w", err)
	}

	return nil
}

func (r *TaskContextRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_task_contexts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task context: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entities.ErrContextNotFound
	}

	return nil
}

func (r *TaskContextRepository) ListByUserAndRole(ctx context.Context, userID uuid.UUID, role entities.ContextRole) ([]*entities.UserTaskContext, error) {
	query := `SELECT ` + contextColumns + ` FROM user_task_contexts WHERE user_id = $1 AND role = $2 ORDER BY id`

	var contexts []*entities.UserTaskContext
	if err := sqlx.SelectContext(ctx, r.db, &contexts, query, userID, role); err != nil {
		return nil, fmt.Errorf("list task contexts by role: %w", err)
	}
	return contexts, nil
}

func (r *TaskContextRepository) ListVisibleByUser(ctx context.Context, userID uuid.UUID) ([]*entities.UserTaskContext, error) {
	query := `SELECT ` + contextColumns + ` FROM user_task_contexts WHERE user_id = $1 AND is_visible ORDER BY id`

	var contexts []*entities.UserTaskContext
	if err := sqlx.SelectContext(ctx, r.db, &contexts, query, userID); err != nil {
		return nil, fmt.Errorf("list visible task contexts: %w", err)
	}
	return contexts, nil
}

// CountOtherUsers counts contexts on the task held by anyone but userID.
func (r *TaskContextRepository) CountOtherUsers(ctx context.Context, taskID int64, userID uuid.UUID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM user_task_contexts WHERE task_id = $1 AND user_id <> $2`
	if err := sqlx.GetContext(ctx, r.db, &n, query, taskID, userID); err != nil {
		return 0, fmt.Errorf("count other task contexts: %w", err)
	}
	return n, nil
}

func (r *TaskContextRepository) DeleteNonOwnerByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_task_contexts WHERE user_id = $1 AND role <> $2`, userID, entities.RoleOwner)
	if err != nil {
		return 0, fmt.Errorf("delete non-owner task contexts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}
