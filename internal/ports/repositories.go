package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/gtd/internal/domain/entities"
)

// Repositories groups the repositories taking part in one unit of work.
type Repositories interface {
	Users() UserRepository
	Tasks() TaskRepository
	Contexts() TaskContextRepository
	TimeSlots() TimeSlotRepository
	JobSearches() JobSearchRepository
	Advertising() AdvertisingRepository
	Activities() ActivityRepository
}

// Store hands out repositories bound either to the pool or to a transaction.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

// UserRepository defines user data access methods
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TaskRepository defines task data access methods
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetByID(ctx context.Context, id int64) (*entities.Task, error)
	GetBySlug(ctx context.Context, slug string) (*entities.Task, error)
	Update(ctx context.Context, task *entities.Task) error
	SetAgenda(ctx context.Context, id int64, isAgenda bool) error
	SaveCreator(ctx context.Context, task *entities.Task) error
	Delete(ctx context.Context, id int64) error

	AddOwner(ctx context.Context, taskID int64, userID uuid.UUID) error
	IsOwner(ctx context.Context, taskID int64, userID uuid.UUID) (bool, error)

	SetHashtags(ctx context.Context, taskID int64, tags []string) error
	ListHashtags(ctx context.Context, taskIDs []int64) (map[int64][]entities.Hashtag, error)

	// RecomputeSubtasksMeta rewrites the parent's subtasks_meta from live child
	// rows in a single statement and returns the stored value.
	RecomputeSubtasksMeta(ctx context.Context, parentID int64, now time.Time) (entities.SubtasksMeta, error)
	ListParentIDs(ctx context.Context) ([]int64, error)

	ListUserTasks(ctx context.Context, userID uuid.UUID, category *entities.Category) ([]entities.TaskView, error)
	ListSubtaskViews(ctx context.Context, parentID int64, userID uuid.UUID) ([]entities.TaskView, error)
}

// TaskContextRepository manages per-user task overlays
type TaskContextRepository interface {
	Get(ctx context.Context, userID uuid.UUID, taskID int64) (*entities.UserTaskContext, error)
	Create(ctx context.Context, tc *entities.UserTaskContext) error
	Update(ctx context.Context, tc *entities.UserTaskContext) error
	Delete(ctx context.Context, id int64) error
	ListByUserAndRole(ctx context.Context, userID uuid.UUID, role entities.ContextRole) ([]*entities.UserTaskContext, error)
	ListVisibleByUser(ctx context.Context, userID uuid.UUID) ([]*entities.UserTaskContext, error)
	CountOtherUsers(ctx context.Context, taskID int64, userID uuid.UUID) (int, error)
	DeleteNonOwnerByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// TimeSlotRepository defines time slot data access methods
type TimeSlotRepository interface {
	Create(ctx context.Context, slot *entities.TimeSlot, ownerID uuid.UUID) error
	GetBySlug(ctx context.Context, slug string) (*entities.TimeSlot, error)
	UpdateCategory(ctx context.Context, id int64, category entities.Category) error
	IsOwner(ctx context.Context, id int64, userID uuid.UUID) (bool, error)
	ListByOwner(ctx context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.TimeSlot, error)
}

// JobSearchRepository defines job search data access methods
type JobSearchRepository interface {
	Create(ctx context.Context, js *entities.JobSearch, ownerID uuid.UUID) error
	GetBySlug(ctx context.Context, slug string) (*entities.JobSearch, error)
	UpdateCategory(ctx context.Context, id int64, category entities.Category) error
	IsOwner(ctx context.Context, id int64, userID uuid.UUID) (bool, error)
	ListByOwner(ctx context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.JobSearch, error)
}

// AdvertisingRepository defines advertising data access methods
type AdvertisingRepository interface {
	Create(ctx context.Context, ad *entities.Advertising, ownerID uuid.UUID) error
	ListByOwner(ctx context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.Advertising, error)
}

// ActivityRepository defines activity data access methods
type ActivityRepository interface {
	Create(ctx context.Context, a *entities.Activity, ownerID uuid.UUID) error
	ListByOwner(ctx context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.Activity, error)
}
