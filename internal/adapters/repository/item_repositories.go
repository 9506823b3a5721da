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

func ownsRow(ctx context.Context, db sqlx.QueryerContext, query string, id int64, userID uuid.UUID) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, db, &exists, query, id, userID); err != nil {
		return false, err
	}
	return exists, nil
}

func updateCategory(ctx context.Context, db sqlx.ExecerContext, query string, id int64, category entities.Category) error {
	result, err := db.ExecContext(ctx, query, id, category)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entities.ErrElementNotFound
	}
	return nil
}

func byOwnerQuery(base string, category *entities.Category, userID uuid.UUID) (string, []interface{}) {
	args := []interface{}{userID}
	if category != nil {
		base += ` AND x.category = $2`
		args = append(args, *category)
	}
	return base + ` ORDER BY x.created_at DESC`, args
}

// TimeSlotRepository

type TimeSlotRepository struct {
	db sqlx.ExtContext
}

func NewTimeSlotRepository(db sqlx.ExtContext) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

func (r *TimeSlotRepository) Create(ctx context.Context, slot *entities.TimeSlot, ownerID uuid.UUID) error {
	query := `
		INSERT INTO time_slots (slug, category, card_template, mode, date_start, date_end, time_start, time_end,
			reserved_time_on_road, start_location, cost_per_hour_cents, minimum_time_slot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		slot.Slug, slot.Category, slot.CardTemplate, slot.Mode, slot.DateStart, slot.DateEnd,
		slot.TimeStart, slot.TimeEnd, slot.ReservedTimeOnRoad, slot.StartLocation,
		slot.CostPerHourCents, slot.MinimumTimeSlot,
	).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create time slot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO time_slot_owners (time_slot_id, user_id) VALUES ($1, $2)`, slot.ID, ownerID)
	if err != nil {
		return fmt.Errorf("add time slot owner: %w", err)
	}

	return nil
}

func (r *TimeSlotRepository) GetBySlug(ctx context.Context, slug string) (*entities.TimeSlot, error) {
	var slot entities.TimeSlot
	if err := sqlx.GetContext(ctx, r.db, &slot, `SELECT * FROM time_slots WHERE slug = $1`, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrElementNotFound
		}
		return nil, fmt.Errorf("get time slot: %w", err)
	}
	return &slot, nil
}

func (r *TimeSlotRepository) UpdateCategory(ctx context.Context, id int64, category entities.Category) error {
	query := `UPDATE time_slots SET category = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if err := updateCategory(ctx, r.db, query, id, category); err != nil {
		return fmt.Errorf("update time slot category: %w", err)
	}
	return nil
}

func (r *TimeSlotRepository) IsOwner(ctx context.Context, id int64, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM time_slot_owners WHERE time_slot_id = $1 AND user_id = $2)`
	ok, err := ownsRow(ctx, r.db, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("check time slot owner: %w", err)
	}
	return ok, nil
}

func (r *TimeSlotRepository) ListByOwner(ctx context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.TimeSlot, error) {
	query, args := byOwnerQuery(`
		SELECT x.* FROM time_slots x
		JOIN time_slot_owners o ON o.time_slot_id = x.id
		WHERE o.user_id = $1`, category, userID)

	slots := []*entities.TimeSlot{}
	if err := sqlx.SelectContext(ctx, r.db, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// JobSearchRepository

type JobSearchRepository struct {
	db sqlx.ExtContext
}

func NewJobSearchRepository(db sqlx.ExtContext) *JobSearchRepository {
	return &JobSearchRepository{db: db}
}

func (r *JobSearchRepository) Create(ctx context.Context, js *entities.JobSearch, ownerID uuid.UUID) error {
	query := `
		INSERT INTO job_searches (slug, category, card_template, mode, title, company_name,
			vacancy_url, description, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		js.Slug, js.Category, js.CardTemplate, js.Mode, js.Title, js.CompanyName,
		js.VacancyURL, js.Description, js.AppliedAt,
	).Scan(&js.ID, &js.CreatedAt, &js.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job search: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO job_search_owners (job_search_id, user_id) VALUES ($1, $2)`, js.ID, ownerID)
	if err != nil {
		return fmt.Errorf("add job search owner: %w", err)
	}

	return nil
}

func (r *JobSearchRepository) GetBySlug(ctx context.Context, slug string) (*entities.JobSearch, error) {
	var js entities.JobSearch
	if err := sqlx.GetContext(ctx, r.db, &js, `SELECT * FROM job_searches WHERE slug = $1`, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrElementNotFound
		}
		return nil, fmt.Errorf("get job search: %w", err)
	}
	return &js, nil
}

func (r *JobSearchRepository) UpdateCategory(ctx context.Context, id int64, category entities.Category) error {
	query := `UPDATE job_searches SET category = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if err := updateCategory(ctx, r.db, query, id, category); err != nil {
		return fmt.Errorf("update job search category: %w", err)
	}
	return nil
}

func (r *JobSearchRepository) IsOwner(ctx context.Context, id int64, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM job_search_owners WHERE job_search_id = $1 AND user_id = $2)`
	ok, err := ownsRow(ctx, r.db, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("check job search owner: %w", err)
	}
	return ok, nil
}

func (r *JobSearchRepository) ListByOwner(ctx context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.JobSearch, error) {
	query, args := byOwnerQuery(`
		SELECT x.* FROM job_searches x
		JOIN job_search_owners o ON o.job_search_id = x.id
		WHERE o.user_id = $1`, category, userID)

	items := []*entities.JobSearch{}
	if err := sqlx.SelectContext(ctx, r.db, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list job searches: %w", err)
	}
	return items, nil
}

// AdvertisingRepository

type AdvertisingRepository struct {
	db sqlx.ExtContext
}

func NewAdvertisingRepository(db sqlx.ExtContext) *AdvertisingRepository {
	return &AdvertisingRepository{db: db}
}

func (r *AdvertisingRepository) Create(ctx context.Context, ad *entities.Advertising, ownerID uuid.UUID) error {
	query := `
		INSERT INTO advertising (slug, category, card_template, mode, title, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		ad.Slug, ad.Category, ad.CardTemplate, ad.Mode, ad.Title, ad.Description,
	).Scan(&ad.ID, &ad.CreatedAt, &ad.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create advertising: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO advertising_owners (advertising_id, user_id) VALUES ($1, $2)`, ad.ID, ownerID)
	if err != nil {
		return fmt.Errorf("add advertising owner: %w", err)
	}

	return nil
}

func (r *AdvertisingRepository) ListByOwner(ctx context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.Advertising, error) {
	query, args := byOwnerQuery(`
		SELECT x.* FROM advertising x
		JOIN advertising_owners o ON o.advertising_id = x.id
		WHERE o.user_id = $1`, category, userID)

	items := []*entities.Advertising{}
	if err := sqlx.SelectContext(ctx, r.db, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list advertising: %w", err)
	}
	return items, nil
}

// ActivityRepository

type ActivityRepository struct {
	db sqlx.ExtContext
}

func NewActivityRepository(db sqlx.ExtContext) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, a *entities.Activity, ownerID uuid.UUID) error {
	query := `
		INSERT INTO activities (slug, category, mode, title, description, activity_type, happened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		a.Slug, a.Category, a.Mode, a.Title, a.Description, a.ActivityType, a.HappenedAt,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO activity_owners (activity_id, user_id) VALUES ($1, $2)`, a.ID, ownerID)
	if err != nil {
		return fmt.Errorf("add activity owner: %w", err)
	}

	return nil
}

func (r *ActivityRepository) ListByOwner(ctx context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.Activity, error) {
	query, args := byOwnerQuery(`
		SELECT x.* FROM activities x
		JOIN activity_owners o ON o.activity_id = x.id
		WHERE o.user_id = $1`, category, userID)

	items := []*entities.Activity{}
	if err := sqlx.SelectContext(ctx, r.db, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return items, nil
}
