package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/gtd/internal/domain/entities"
	"github.com/taskmaster/gtd/internal/infrastructure/database"
	"github.com/taskmaster/gtd/internal/ports"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

var fixedTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func taskRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "slug", "title", "description", "priority", "task_mode", "card_template",
		"start_datetime", "end_datetime", "recurrence_pattern", "subtasks_meta", "parent_id", "is_agenda",
		"creator_id", "creator_deleted", "creator_display_name", "note", "created_at", "updated_at",
	})
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectQuery("FROM users").WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, entities.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: uniqueViolation})

	err := repo.Create(context.Background(), &entities.User{Email: "a@b.c", Username: "abc"})
	assert.ErrorIs(t, err, entities.ErrUserAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateAssignsID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(fixedTime, fixedTime))

	user := &entities.User{Email: "a@b.c", Username: "abc", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, fixedTime, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_DeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM users").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), id), entities.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_GetBySlug(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	creator := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE slug = $1")).
		WithArgs("write-report-1a2b3c4d").
		WillReturnRows(taskRows().AddRow(
			7, "write-report-1a2b3c4d", "Write report", "", "iu", "draft", "task",
			fixedTime, nil, []byte(`{"type":"weekly","occurrences":[{"date":"2024-03-04"}]}`),
			[]byte(`{"count":3,"completed_count":1,"last_updated":null}`), nil, true,
			creator.String(), false, nil, nil, fixedTime, fixedTime,
		))

	task, err := repo.GetBySlug(context.Background(), "write-report-1a2b3c4d")
	require.NoError(t, err)

	assert.Equal(t, int64(7), task.ID)
	require.NotNil(t, task.Priority)
	assert.Equal(t, entities.PriorityImportantUrgent, *task.Priority)
	require.NotNil(t, task.RecurrencePattern)
	assert.Equal(t, "weekly", task.RecurrencePattern.Type)
	assert.Equal(t, 3, task.SubtasksMeta.Count)
	assert.Equal(t, 1, task.SubtasksMeta.CompletedCount)
	assert.Nil(t, task.ParentID)
	assert.Nil(t, task.EndDatetime)
	require.NotNil(t, task.CreatorID)
	assert.Equal(t, creator, *task.CreatorID)
	assert.True(t, task.IsAgenda)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_GetBySlugNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery("FROM tasks").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBySlug(context.Background(), "nope")
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestTaskRepository_RecomputeSubtasksMeta(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tasks AS p SET subtasks_meta = jsonb_build_object(")).
		WithArgs(int64(42), fixedTime).
		WillReturnRows(sqlmock.NewRows([]string{"subtasks_meta"}).
			AddRow([]byte(`{"count":4,"completed_count":2,"last_updated":"2024-03-01T09:30:00+00:00"}`)))

	meta, err := repo.RecomputeSubtasksMeta(context.Background(), 42, fixedTime)
	require.NoError(t, err)

	assert.Equal(t, 4, meta.Count)
	assert.Equal(t, 2, meta.CompletedCount)
	require.NotNil(t, meta.LastUpdated)
	assert.True(t, meta.LastUpdated.Equal(fixedTime))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_RecomputeSubtasksMetaMissingParent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery("UPDATE tasks AS p").WillReturnRows(sqlmock.NewRows([]string{"subtasks_meta"}))

	_, err := repo.RecomputeSubtasksMeta(context.Background(), 42, fixedTime)
	assert.ErrorIs(t, err, entities.ErrParentNotFound)
}

func TestTaskRepository_ListUserTasksWithHashtags(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	userID := uuid.New()
	category := entities.CategoryAgenda

	viewCols := []string{
		"id", "slug", "title", "description", "priority", "task_mode", "card_template",
		"is_agenda", "subtasks_meta", "parent_id", "start_datetime", "end_datetime", "created_at", "updated_at",
		"category", "role", "personal_note", "completed_at",
	}

	mock.ExpectQuery(regexp.QuoteMeta("AND utc.category = $2 ORDER BY t.created_at DESC")).
		WithArgs(userID, "agenda").
		WillReturnRows(sqlmock.NewRows(viewCols).
			AddRow(2, "b-2", "B", "", nil, "draft", "task", true, nil, nil, fixedTime, nil, fixedTime, fixedTime,
				"agenda", "owner", nil, nil).
			AddRow(1, "a-1", "A", "", nil, "draft", "task", true, nil, nil, nil, nil, fixedTime, fixedTime,
				"agenda", "assignee", nil, nil))

	mock.ExpectQuery("FROM task_hashtags").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "id", "tag"}).
			AddRow(2, 10, "home").
			AddRow(2, 11, "urgent"))

	views, err := repo.ListUserTasks(context.Background(), userID, &category)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, entities.CategoryAgenda, views[0].Status)
	assert.Len(t, views[0].Hashtags, 2)
	require.NotNil(t, views[0].DateStart)
	assert.Equal(t, "2024-03-01", *views[0].DateStart)

	assert.Equal(t, entities.RoleAssignee, views[1].Role)
	assert.NotNil(t, views[1].Hashtags)
	assert.Empty(t, views[1].Hashtags)
	assert.Nil(t, views[1].DateStart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_ListSubtaskViewsEmpty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("t.parent_id = $2")).
		WithArgs(userID, int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	views, err := repo.ListSubtaskViews(context.Background(), 5, userID)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_SetHashtags(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectExec("DELETE FROM task_hashtags").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO hashtags").WithArgs("work").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectExec("INSERT INTO task_hashtags").WithArgs(int64(3), int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetHashtags(context.Background(), 3, []string{" work ", "  "})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_DeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectExec("DELETE FROM tasks").WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 9), entities.ErrTaskNotFound)
}

func TestTaskRepository_IsOwner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	userID := uuid.New()

	mock.ExpectQuery("FROM task_owners").WithArgs(int64(3), userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsOwner(context.Background(), 3, userID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTaskContextRepository_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskContextRepository(db)

	mock.ExpectQuery("FROM user_task_contexts").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, entities.ErrContextNotFound)
}

func TestTaskContextRepository_DeleteNonOwnerByUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskContextRepository(db)
	userID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_task_contexts WHERE user_id = $1 AND role <> $2")).
		WithArgs(userID, "owner").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteNonOwnerByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTaskContextRepository_Update(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskContextRepository(db)

	tc := &entities.UserTaskContext{ID: 4, Category: entities.CategoryDone, Role: entities.RoleOwner, CompletedAt: &fixedTime, IsVisible: true}

	mock.ExpectQuery("UPDATE user_task_contexts").
		WithArgs(int64(4), "done", "owner", fixedTime, nil, nil, true).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(fixedTime))

	require.NoError(t, repo.Update(context.Background(), tc))
	assert.Equal(t, fixedTime, tc.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSlotRepository_CreateAddsOwner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTimeSlotRepository(db)
	owner := uuid.New()

	mock.ExpectQuery("INSERT INTO time_slots").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(15, fixedTime, fixedTime))
	mock.ExpectExec("INSERT INTO time_slot_owners").WithArgs(int64(15), owner).
		WillReturnResult(sqlmock.NewResult(0, 1))

	slot := &entities.TimeSlot{Slug: "office-1234abcd", Category: entities.CategoryInbox}
	require.NoError(t, repo.Create(context.Background(), slot, owner))
	assert.Equal(t, int64(15), slot.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobSearchRepository_UpdateCategoryMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewJobSearchRepository(db)

	mock.ExpectExec("UPDATE job_searches SET category").WithArgs(int64(8), "waiting").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateCategory(context.Background(), 8, entities.CategoryWaiting)
	assert.ErrorIs(t, err, entities.ErrElementNotFound)
}

func TestAdvertisingRepository_ListByOwnerFiltered(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAdvertisingRepository(db)
	owner := uuid.New()
	category := entities.CategoryProjects

	mock.ExpectQuery(regexp.QuoteMeta("AND x.category = $2 ORDER BY x.created_at DESC")).
		WithArgs(owner, "projects").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "category", "card_template", "mode", "title", "description", "created_at", "updated_at"}).
			AddRow(1, "ad-1", "projects", "advertising", "published", "Plumbing", "", fixedTime, fixedTime))

	items, err := repo.ListByOwner(context.Background(), owner, &category)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Plumbing", items[0].Title)
}

func TestStore_WithinTxCommits(t *testing.T) {
	db, mock := newMock(t)
	store := NewStore(database.Wrap(db))
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_task_contexts").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(repos ports.Repositories) error {
		if _, err := repos.Contexts().DeleteNonOwnerByUser(context.Background(), userID); err != nil {
			return err
		}
		return repos.Users().Delete(context.Background(), userID)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	db, mock := newMock(t)
	store := NewStore(database.Wrap(db))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(repos ports.Repositories) error {
		return repos.Users().Delete(context.Background(), uuid.New())
	})

	assert.True(t, errors.Is(err, entities.ErrUserNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
