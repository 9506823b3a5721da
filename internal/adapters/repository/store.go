package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/gtd/internal/infrastructure/database"
	"github.com/taskmaster/gtd/internal/ports"
)

// repositories binds every repository to one executor, either the pool or a tx.
type repositories struct {
	users       *UserRepository
	tasks       *TaskRepository
	contexts    *TaskContextRepository
	timeSlots   *TimeSlotRepository
	jobSearches *JobSearchRepository
	advertising *AdvertisingRepository
	activities  *ActivityRepository
}

func newRepositories(q sqlx.ExtContext) *repositories {
	return &repositories{
		users:       NewUserRepository(q),
		tasks:       NewTaskRepository(q),
		contexts:    NewTaskContextRepository(q),
		timeSlots:   NewTimeSlotRepository(q),
		jobSearches: NewJobSearchRepository(q),
		advertising: NewAdvertisingRepository(q),
		activities:  NewActivityRepository(q),
	}
}

func (r *repositories) Users() ports.UserRepository              { return r.users }
func (r *repositories) Tasks() ports.TaskRepository              { return r.tasks }
func (r *repositories) Contexts() ports.TaskContextRepository    { return r.contexts }
func (r *repositories) TimeSlots() ports.TimeSlotRepository      { return r.timeSlots }
func (r *repositories) JobSearches() ports.JobSearchRepository   { return r.jobSearches }
func (r *repositories) Advertising() ports.AdvertisingRepository { return r.advertising }
func (r *repositories) Activities() ports.ActivityRepository     { return r.activities }

// Store is the PostgreSQL implementation of ports.Store.
type Store struct {
	*repositories
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{
		repositories: newRepositories(db.DB),
		db:           db,
	}
}

// WithinTx runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(ports.Repositories) error) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		return fn(newRepositories(tx))
	})
}
