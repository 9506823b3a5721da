package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskmaster/gtd/internal/domain/entities"
)

const taskColumns = `id, slug, title, description, priority, task_mode, card_template,
	start_datetime, end_datetime, recurrence_pattern, subtasks_meta, parent_id, is_agenda,
	creator_id, creator_deleted, creator_display_name, note, created_at, updated_at`

const taskViewColumns = `t.id, t.slug, t.title, t.description, t.priority, t.task_mode, t.card_template,
	t.is_agenda, t.subtasks_meta, t.parent_id, t.start_datetime, t.end_datetime, t.created_at, t.updated_at,
	utc.category, utc.role, utc.personal_note, utc.completed_at`

type TaskRepository struct {
	db sqlx.ExtContext
}

func NewTaskRepository(db sqlx.ExtContext) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (slug, title, description, priority, task_mode, card_template,
			start_datetime, end_datetime, recurrence_pattern, subtasks_meta, parent_id, is_agenda,
			creator_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		task.Slug, task.Title, task.Description, task.Priority, task.TaskMode, task.CardTemplate,
		task.StartDatetime, task.EndDatetime, task.RecurrencePattern, task.SubtasksMeta, task.ParentID,
		task.IsAgenda, task.CreatorID, task.Note,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entities.Task, error) {
	return r.getOne(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
}

func (r *TaskRepository) GetBySlug(ctx context.Context, slug string) (*entities.Task, error) {
	return r.getOne(ctx, `SELECT `+taskColumns+` FROM tasks WHERE slug = $1`, slug)
}

func (r *TaskRepository) getOne(ctx context.Context, query string, arg interface{}) (*entities.Task, error) {
	var task entities.Task
	if err := sqlx.GetContext(ctx, r.db, &task, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, priority = $4, task_mode = $5, card_template = $6,
			start_datetime = $7, end_datetime = $8, recurrence_pattern = $9, parent_id = $10,
			is_agenda = $11, note = $12, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		task.ID, task.Title, task.Description, task.Priority, task.TaskMode, task.CardTemplate,
		task.StartDatetime, task.EndDatetime, task.RecurrencePattern, task.ParentID,
		task.IsAgenda, task.Note,
	).Scan(&task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrTaskNotFound
		}
		return fmt.Errorf("update task: %w", err)
	}

	return nil
}

func (r *TaskRepository) SetAgenda(ctx context.Context, id int64, isAgenda bool) error {
	query := `UPDATE tasks SET is_agenda = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	return r.execOne(ctx, "set agenda flag", query, id, isAgenda)
}

// SaveCreator persists the creator attribution columns only.
func (r *TaskRepository) SaveCreator(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET creator_id = $2, creator_deleted = $3, creator_display_name = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`
	return r.execOne(ctx, "save task creator", query, task.ID, task.CreatorID, task.CreatorDeleted, task.CreatorDisplayName)
}

// Delete removes the task. Photos, hashtag links, contexts, owner rows and
// subtasks are removed by the schema's cascades.
func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, "delete task", `DELETE FROM tasks WHERE id = $1`, id)
}

func (r *TaskRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entities.ErrTaskNotFound
	}

	return nil
}

func (r *TaskRepository) AddOwner(ctx context.Context, taskID int64, userID uuid.UUID) error {
	query := `INSERT INTO task_owners (task_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, taskID, userID); err != nil {
		return fmt.Errorf("add task owner: %w", err)
	}
	return nil
}

func (r *TaskRepository) IsOwner(ctx context.Context, taskID int64, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM task_owners WHERE task_id = $1 AND user_id = $2)`
	if err := sqlx.GetContext(ctx, r.db, &exists, query, taskID, userID); err != nil {
		return false, fmt.Errorf("check task owner: %w", err)
	}
	return exists, nil
}

// SetHashtags replaces the task's hashtag links, creating missing tags.
func (r *TaskRepository) SetHashtags(ctx context.Context, taskID int64, tags []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM task_hashtags WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("clear task hashtags: %w", err)
	}

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		var hashtagID int64
		err := r.db.QueryRowxContext(ctx, `
			INSERT INTO hashtags (tag) VALUES ($1)
			ON CONFLICT (tag) DO UPDATE SET tag = EXCLUDED.tag
			RETURNING id`, tag).Scan(&hashtagID)
		if err != nil {
			return fmt.Errorf("upsert hashtag %q: %w", tag, err)
		}

		_, err = r.db.ExecContext(ctx,
			`INSERT INTO task_hashtags (task_id, hashtag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			taskID, hashtagID)
		if err != nil {
			return fmt.Errorf("link hashtag %q: %w", tag, err)
		}
	}

	return nil
}

type taskHashtagRow struct {
	TaskID int64  `db:"task_id"`
	ID     int64  `db:"id"`
	Tag    string `db:"tag"`
}

func (r *TaskRepository) ListHashtags(ctx context.Context, taskIDs []int64) (map[int64][]entities.Hashtag, error) {
	result := make(map[int64][]entities.Hashtag, len(taskIDs))
	if len(taskIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT th.task_id, h.id, h.tag
		FROM task_hashtags th
		JOIN hashtags h ON h.id = th.hashtag_id
		WHERE th.task_id = ANY($1)
		ORDER BY h.tag`

	var rows []taskHashtagRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, pq.Array(taskIDs)); err != nil {
		return nil, fmt.Errorf("list hashtags: %w", err)
	}

	for _, row := range rows {
		result[row.TaskID] = append(result[row.TaskID], entities.Hashtag{ID: row.ID, Tag: row.Tag})
	}
	return result, nil
}

// RecomputeSubtasksMeta aggregates the parent's children and stores the
// summary in one statement so the counts come from a single snapshot.
func (r *TaskRepository) RecomputeSubtasksMeta(ctx context.Context, parentID int64, now time.Time) (entities.SubtasksMeta, error) {
	query := `
		UPDATE tasks AS p
		SET subtasks_meta = jsonb_build_object(
			'count', (SELECT COUNT(*) FROM tasks c WHERE c.parent_id = p.id),
			'completed_count', (
				SELECT COUNT(*)
				FROM user_task_contexts utc
				JOIN tasks c ON c.id = utc.task_id
				WHERE c.parent_id = p.id AND utc.category = 'done' AND utc.is_visible
			),
			'last_updated', $2::timestamptz
		)
		WHERE p.id = $1
		RETURNING p.subtasks_meta`

	var meta entities.SubtasksMeta
	if err := r.db.QueryRowxContext(ctx, query, parentID, now).Scan(&meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.SubtasksMeta{}, entities.ErrParentNotFound
		}
		return entities.SubtasksMeta{}, fmt.Errorf("recompute subtasks meta: %w", err)
	}

	return meta, nil
}

func (r *TaskRepository) ListParentIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := `SELECT DISTINCT parent_id FROM tasks WHERE parent_id IS NOT NULL ORDER BY parent_id`
	if err := sqlx.SelectContext(ctx, r.db, &ids, query); err != nil {
		return nil, fmt.Errorf("list parent ids: %w", err)
	}
	return ids, nil
}

// ListUserTasks returns the user's visible tasks, newest first.
func (r *TaskRepository) ListUserTasks(ctx context.Context, userID uuid.UUID, category *entities.Category) ([]entities.TaskView, error) {
	query := `
		SELECT ` + taskViewColumns + `
		FROM user_task_contexts utc
		JOIN tasks t ON t.id = utc.task_id
		WHERE utc.user_id = $1 AND utc.is_visible`
	args := []interface{}{userID}

	if category != nil {
		query += ` AND utc.category = $2`
		args = append(args, *category)
	}
	query += ` ORDER BY t.created_at DESC`

	return r.selectViews(ctx, "list user tasks", query, args...)
}

func (r *TaskRepository) ListSubtaskViews(ctx context.Context, parentID int64, userID uuid.UUID) ([]entities.TaskView, error) {
	query := `
		SELECT ` + taskViewColumns + `
		FROM user_task_contexts utc
		JOIN tasks t ON t.id = utc.task_id
		WHERE utc.user_id = $1 AND t.parent_id = $2 AND utc.is_visible
		ORDER BY t.created_at DESC`

	return r.selectViews(ctx, "list subtasks", query, userID, parentID)
}

func (r *TaskRepository) selectViews(ctx context.Context, op, query string, args ...interface{}) ([]entities.TaskView, error) {
	views := []entities.TaskView{}
	if err := sqlx.SelectContext(ctx, r.db, &views, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(views) == 0 {
		return views, nil
	}

	ids := make([]int64, len(views))
	for i := range views {
		ids[i] = views[i].ID
	}

	tags, err := r.ListHashtags(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range views {
		views[i].Hashtags = tags[views[i].ID]
		views[i].FillDates()
	}
	return views, nil
}
