package entities

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrParentNotFound      = errors.New("parent task not found")
	ErrElementNotFound     = errors.New("element not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrContextNotFound     = errors.New("task context not found")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidPriority     = errors.New("invalid priority")
	ErrInvalidTaskMode     = errors.New("invalid task mode")
	ErrInvalidCardTemplate = errors.New("invalid card template")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidParent       = errors.New("task cannot be nested under itself")
	ErrEmptyTitle          = errors.New("title must not be blank")
	ErrSelfDelegation      = errors.New("cannot delegate a task to yourself")
	ErrForbidden           = errors.New("you do not have permission to modify this element")
	ErrUserAlreadyExists   = errors.New("user already exists")
)

// Category is one of the fixed lifecycle buckets a work item can occupy.
type Category string

const (
	CategoryInbox    Category = "inbox"
	CategoryBacklog  Category = "backlog"
	CategoryAgenda   Category = "agenda"
	CategoryWaiting  Category = "waiting"
	CategorySomeday  Category = "someday"
	CategoryProjects Category = "projects"
	CategorySubtask  Category = "subtask"
	CategoryDone     Category = "done"
	CategoryArchive  Category = "archive"
)

// Categories lists every bucket in display order.
var Categories = []Category{
	CategoryInbox,
	CategoryBacklog,
	CategoryAgenda,
	CategoryWaiting,
	CategorySomeday,
	CategoryProjects,
	CategorySubtask,
	CategoryDone,
	CategoryArchive,
}

func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory normalizes and validates a category name.
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, name)
	}
	return c, nil
}

// CardTemplate is the display kind of a work item.
type CardTemplate string

const (
	CardTemplateTask        CardTemplate = "task"
	CardTemplateTender      CardTemplate = "tender"
	CardTemplateProject     CardTemplate = "project"
	CardTemplateAdvertising CardTemplate = "advertising"
	CardTemplateOrders      CardTemplate = "orders"
	CardTemplateJobSearch   CardTemplate = "job_search"
	CardTemplateTimeSlot    CardTemplate = "timeslot"
)

var CardTemplates = []CardTemplate{
	CardTemplateTask,
	CardTemplateTender,
	CardTemplateProject,
	CardTemplateAdvertising,
	CardTemplateOrders,
	CardTemplateJobSearch,
	CardTemplateTimeSlot,
}

func (t CardTemplate) IsValid() bool {
	for _, known := range CardTemplates {
		if t == known {
			return true
		}
	}
	return false
}

// Priority follows the Eisenhower matrix: important/urgent combinations.
type Priority string

const (
	PriorityImportantUrgent       Priority = "iu"
	PriorityImportantNotUrgent    Priority = "inu"
	PriorityNotImportantUrgent    Priority = "niu"
	PriorityNotImportantNotUrgent Priority = "ninu"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityImportantUrgent, PriorityImportantNotUrgent, PriorityNotImportantUrgent, PriorityNotImportantNotUrgent:
		return true
	}
	return false
}

type TaskMode string

const (
	TaskModeDraft     TaskMode = "draft"
	TaskModePublished TaskMode = "published"
	TaskModePrivate   TaskMode = "private"
	TaskModeHidden    TaskMode = "hidden"
	TaskModeArchived  TaskMode = "archived"
	TaskModeTemplate  TaskMode = "template"
	TaskModeRecurring TaskMode = "recurring"
	TaskModeShared    TaskMode = "shared"
)

func (m TaskMode) IsValid() bool {
	switch m {
	case TaskModeDraft, TaskModePublished, TaskModePrivate, TaskModeHidden,
		TaskModeArchived, TaskModeTemplate, TaskModeRecurring, TaskModeShared:
		return true
	}
	return false
}

// ContextRole is a user's relationship to a shared task.
type ContextRole string

const (
	RoleOwner        ContextRole = "owner"
	RoleAssignee     ContextRole = "assignee"
	RoleCollaborator ContextRole = "collaborator"
)

func (r ContextRole) IsValid() bool {
	switch r {
	case RoleOwner, RoleAssignee, RoleCollaborator:
		return true
	}
	return false
}

// ElementType names the kinds of work item addressable by slug.
type ElementType string

const (
	ElementTask      ElementType = "task"
	ElementTimeSlot  ElementType = "timeslot"
	ElementJobSearch ElementType = "job_search"
)

// User represents an account that can own or collaborate on work items
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    *string   `json:"first_name" db:"first_name"`
	LastName     *string   `json:"last_name" db:"last_name"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// DeletedUserDisplayName is what anonymized tasks show instead of their creator.
func DeletedUserDisplayName(userID uuid.UUID) string {
	return fmt.Sprintf("[Deleted User #%s]", userID)
}

// Hashtag is a tag attached to a work item.
type Hashtag struct {
	ID  int64  `json:"id" db:"id"`
	Tag string `json:"tag_name" db:"tag"`
}

// Photo is an image stored on disk and linked to a task.
type Photo struct {
	ID       int64  `json:"id" db:"id"`
	TaskID   int64  `json:"task_id" db:"task_id"`
	Location string `json:"photo_location" db:"photo_location"`
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugBase = 50

// NewSlug derives a unique, URL-safe identifier from a title.
func NewSlug(title string) string {
	base := slugInvalid.ReplaceAllString(strings.ToLower(title), "-")
	base = strings.Trim(base, "-")
	if len(base) > maxSlugBase {
		base = strings.TrimRight(base[:maxSlugBase], "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
