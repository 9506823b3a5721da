package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/gtd/internal/domain/entities"
)

// ElementService moves any slug-addressable work item between categories
type ElementService interface {
	UpdatePosition(ctx context.Context, userID uuid.UUID, slug, position string) (*PositionResult, error)
}

// TaskService interface for task management operations
type TaskService interface {
	CreateTask(ctx context.Context, userID uuid.UUID, req CreateTaskRequest) (*entities.Task, error)
	UpdateTask(ctx context.Context, userID uuid.UUID, slug string, req UpdateTaskRequest) (*entities.Task, error)
	DeleteTask(ctx context.Context, userID uuid.UUID, slug string) error
	ListUserTasks(ctx context.Context, userID uuid.UUID, category string) ([]entities.TaskView, error)
	GetSubtasks(ctx context.Context, userID uuid.UUID, parentSlug string) ([]entities.TaskView, error)
	SaveNote(ctx context.Context, userID uuid.UUID, slug string, note string) (*entities.UserTaskContext, error)
	DelegateTask(ctx context.Context, fromUserID uuid.UUID, slug string, req DelegateTaskRequest) (*entities.UserTaskContext, error)
	RebuildSubtasksMeta(ctx context.Context) (int, error)
}

// UserService interface for account level operations
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*entities.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*entities.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) (*entities.AnonymizationStats, error)
	Statistics(ctx context.Context, id uuid.UUID) (*entities.TaskStatistics, error)
}

// ItemService covers the ancillary work item types
type ItemService interface {
	CreateTimeSlot(ctx context.Context, userID uuid.UUID, req CreateTimeSlotRequest) (*entities.TimeSlot, error)
	ListTimeSlots(ctx context.Context, userID uuid.UUID, category string) ([]*entities.TimeSlot, error)
	CreateJobSearch(ctx context.Context, userID uuid.UUID, req CreateJobSearchRequest) (*entities.JobSearch, error)
	ListJobSearches(ctx context.Context, userID uuid.UUID, category string) ([]*entities.JobSearch, error)
	CreateAdvertising(ctx context.Context, userID uuid.UUID, req CreateAdvertisingRequest) (*entities.Advertising, error)
	ListAdvertising(ctx context.Context, userID uuid.UUID, category string) ([]*entities.Advertising, error)
	CreateActivity(ctx context.Context, userID uuid.UUID, req CreateActivityRequest) (*entities.Activity, error)
	ListActivities(ctx context.Context, userID uuid.UUID, category string) ([]*entities.Activity, error)
}

// SubtaskCache stores materialized subtask listings per parent and viewer.
type SubtaskCache interface {
	Get(ctx context.Context, parentID int64, userID uuid.UUID) ([]entities.TaskView, bool, error)
	Set(ctx context.Context, parentID int64, userID uuid.UUID, rows []entities.TaskView) error
	Invalidate(ctx context.Context, parentID int64) error
}

// Request/Response Types

type PositionRequest struct {
	Position string `json:"position" validate:"required"`
}

type PositionResult struct {
	Success     bool                 `json:"success"`
	Position    entities.Category    `json:"position"`
	ElementType entities.ElementType `json:"element_type"`
	Slug        string               `json:"slug"`
}

type CreateTaskRequest struct {
	Title             string                      `json:"title" validate:"required,max=120"`
	Description       string                      `json:"description" validate:"max=5000"`
	Priority          *entities.Priority          `json:"priority"`
	TaskMode          entities.TaskMode           `json:"task_mode"`
	CardTemplate      entities.CardTemplate       `json:"card_template"`
	StartDatetime     *time.Time                  `json:"start_datetime"`
	EndDatetime       *time.Time                  `json:"end_datetime"`
	RecurrencePattern *entities.RecurrencePattern `json:"recurrence_pattern"`
	ParentSlug        *string                     `json:"parent_slug"`
	Hashtags          []string                    `json:"hashtags" validate:"max=20,dive,max=50"`
}

type UpdateTaskRequest struct {
	Title             *string                     `json:"title" validate:"omitempty,max=120"`
	Description       *string                     `json:"description" validate:"omitempty,max=5000"`
	Priority          *entities.Priority          `json:"priority"`
	TaskMode          *entities.TaskMode          `json:"task_mode"`
	StartDatetime     *time.Time                  `json:"start_datetime"`
	EndDatetime       *time.Time                  `json:"end_datetime"`
	RecurrencePattern *entities.RecurrencePattern `json:"recurrence_pattern"`
	ParentSlug        *string                     `json:"parent_slug"`
	Hashtags          []string                    `json:"hashtags" validate:"omitempty,max=20,dive,max=50"`
}

type NoteRequest struct {
	Note string `json:"note" validate:"max=10000"`
}

type DelegateTaskRequest struct {
	UserID   uuid.UUID `json:"user_id" validate:"required"`
	Category string    `json:"category"`
}

type CreateUserRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Username  string  `json:"username" validate:"required,min=3,max=50"`
	Password  string  `json:"password" validate:"required,min=8"`
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
}

type CreateTimeSlotRequest struct {
	DateStart          time.Time `json:"date_start" validate:"required"`
	DateEnd            time.Time `json:"date_end" validate:"required,gtefield=DateStart"`
	TimeStart          string    `json:"time_start" validate:"required,max=8,datetime=15:04|datetime=15:04:05"`
	TimeEnd            string    `json:"time_end" validate:"required,max=8,datetime=15:04|datetime=15:04:05"`
	ReservedTimeOnRoad int       `json:"reserved_time_on_road" validate:"min=0"`
	StartLocation      string    `json:"start_location" validate:"required,max=100"`
	CostPerHourCents   int64     `json:"cost_of_1_hour_of_work" validate:"min=0"`
	MinimumTimeSlot    string    `json:"minimum_time_slot" validate:"max=50"`
}

type CreateJobSearchRequest struct {
	Title       string     `json:"title" validate:"required,max=120"`
	CompanyName string     `json:"company_name" validate:"max=120"`
	VacancyURL  *string    `json:"vacancy_url" validate:"omitempty,url"`
	Description string     `json:"description" validate:"max=5000"`
	AppliedAt   *time.Time `json:"applied_at"`
}

type CreateAdvertisingRequest struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=5000"`
}

type CreateActivityRequest struct {
	Title        string     `json:"title" validate:"required,max=120"`
	Description  string     `json:"description" validate:"max=5000"`
	ActivityType string     `json:"activity_type" validate:"max=50"`
	HappenedAt   *time.Time `json:"happened_at"`
}
