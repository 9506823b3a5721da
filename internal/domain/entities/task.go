package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is the shared work item. Per-user state lives in UserTaskContext.
type Task struct {
	ID                 int64              `json:"id" db:"id"`
	Slug               string             `json:"slug" db:"slug"`
	Title              string             `json:"title" db:"title"`
	Description        string             `json:"description" db:"description"`
	Priority           *Priority          `json:"priority" db:"priority"`
	TaskMode           TaskMode           `json:"task_mode" db:"task_mode"`
	CardTemplate       CardTemplate       `json:"card_template" db:"card_template"`
	StartDatetime      *time.Time         `json:"start_datetime" db:"start_datetime"`
	EndDatetime        *time.Time         `json:"end_datetime" db:"end_datetime"`
	RecurrencePattern  *RecurrencePattern `json:"recurrence_pattern" db:"recurrence_pattern"`
	SubtasksMeta       SubtasksMeta       `json:"subtasks_meta" db:"subtasks_meta"`
	ParentID           *int64             `json:"parent_id" db:"parent_id"`
	IsAgenda           bool               `json:"is_agenda" db:"is_agenda"`
	CreatorID          *uuid.UUID         `json:"creator_id" db:"creator_id"`
	CreatorDeleted     bool               `json:"creator_deleted" db:"creator_deleted"`
	CreatorDisplayName *string            `json:"creator_display_name" db:"creator_display_name"`
	Note               *string            `json:"note" db:"note"`
	Hashtags           []Hashtag          `json:"hashtags" db:"-"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// IsSubtask reports whether the task hangs under a parent.
func (t *Task) IsSubtask() bool {
	return t.ParentID != nil
}

// Anonymize detaches the task from a creator who deleted their account.
func (t *Task) Anonymize(userID uuid.UUID) {
	name := DeletedUserDisplayName(userID)
	t.CreatorID = nil
	t.CreatorDeleted = true
	t.CreatorDisplayName = &name
}

// UserTaskContext is one user's overlay on a shared task.
type UserTaskContext struct {
	ID           int64       `json:"id" db:"id"`
	UserID       uuid.UUID   `json:"user_id" db:"user_id"`
	TaskID       int64       `json:"task_id" db:"task_id"`
	Category     Category    `json:"category" db:"category"`
	Role         ContextRole `json:"role" db:"role"`
	CompletedAt  *time.Time  `json:"completed_at" db:"completed_at"`
	PersonalNote *string     `json:"personal_note" db:"personal_note"`
	DelegatedBy  *uuid.UUID  `json:"delegated_by" db:"delegated_by"`
	IsVisible    bool        `json:"is_visible" db:"is_visible"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// MoveTo places the task into target for this context's user.
//
// Entering done stamps completed_at once; leaving done clears it. The shared
// is_agenda flag follows agenda, except that a move to done leaves it as is.
func (c *UserTaskContext) MoveTo(task *Task, target Category, now time.Time) {
	if target == CategoryDone {
		if c.CompletedAt == nil {
			c.CompletedAt = &now
		}
	} else {
		c.CompletedAt = nil
	}

	switch target {
	case CategoryAgenda:
		task.IsAgenda = true
	case CategoryDone:
	default:
		task.IsAgenda = false
	}

	c.Category = target
}

// RecurrenceOccurrence is one concrete slot of a recurring task.
type RecurrenceOccurrence struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Label     string `json:"label,omitempty"`
}

// RecurrencePattern is stored as JSONB on the task row.
type RecurrencePattern struct {
	Type        string                 `json:"type"`
	Occurrences []RecurrenceOccurrence `json:"occurrences"`
}

func (p RecurrencePattern) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *RecurrencePattern) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// SubtasksMeta is a denormalized summary of a parent's subtasks. It is a
// cache recomputed from child rows, never the source of truth.
type SubtasksMeta struct {
	Count          int        `json:"count"`
	CompletedCount int        `json:"completed_count"`
	LastUpdated    *time.Time `json:"last_updated"`
}

func (m SubtasksMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *SubtasksMeta) Scan(src interface{}) error {
	if src == nil {
		*m = SubtasksMeta{}
		return nil
	}
	return scanJSON(src, m)
}

func scanJSON(src interface{}, dest interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// TaskView is the row shape returned by task listings and cached subtask lists.
type TaskView struct {
	ID           int64        `json:"id" db:"id"`
	Slug         string       `json:"slug" db:"slug"`
	Title        string       `json:"title" db:"title"`
	Description  string       `json:"description" db:"description"`
	DateStart    *string      `json:"date_start" db:"-"`
	DateEnd      *string      `json:"date_end" db:"-"`
	Priority     *Priority    `json:"priority" db:"priority"`
	Status       Category     `json:"status" db:"category"`
	TaskMode     TaskMode     `json:"task_mode" db:"task_mode"`
	CardTemplate CardTemplate `json:"card_template" db:"card_template"`
	IsAgenda     bool         `json:"is_agenda" db:"is_agenda"`
	Role         ContextRole  `json:"role" db:"role"`
	PersonalNote *string      `json:"personal_note" db:"personal_note"`
	SubtasksMeta SubtasksMeta `json:"subtasks_meta" db:"subtasks_meta"`
	ParentID     *int64       `json:"parent_id" db:"parent_id"`
	CompletedAt  *time.Time   `json:"completed_at" db:"completed_at"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
	Hashtags     []Hashtag    `json:"hashtags" db:"-"`

	StartDatetime *time.Time `json:"-" db:"start_datetime"`
	EndDatetime   *time.Time `json:"-" db:"end_datetime"`
}

// FillDates derives the date-only fields from the stored datetimes.
func (v *TaskView) FillDates() {
	v.DateStart = isoDate(v.StartDatetime)
	v.DateEnd = isoDate(v.EndDatetime)
	if v.Hashtags == nil {
		v.Hashtags = []Hashtag{}
	}
}

func isoDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

// AnonymizationStats summarizes what happened to a departing user's tasks.
type AnonymizationStats struct {
	TasksAnonymized int `json:"tasks_anonymized"`
	TasksDeleted    int `json:"tasks_deleted"`
	ContextsRemoved int `json:"contexts_removed"`
	TasksPreserved  int `json:"tasks_preserved"`
}

// TaskStatistics aggregates a user's visible task contexts.
type TaskStatistics struct {
	TotalTasks     int                 `json:"total_tasks"`
	ByCategory     map[Category]int    `json:"by_category"`
	ByRole         map[ContextRole]int `json:"by_role"`
	CompletedTasks int                 `json:"completed_tasks"`
	DelegatedTasks int                 `json:"delegated_tasks"`
}
