package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskmaster/gtd/internal/domain/entities"
	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/ports"
)

// ItemService manages the work items that live outside the task model:
// time slots, job searches, advertising and activities.
type ItemService struct {
	store  ports.Store
	logger *logger.Logger
}

func NewItemService(store ports.Store, log *logger.Logger) *ItemService {
	return &ItemService{
		store:  store,
		logger: log.WithComponent("items"),
	}
}

func (s *ItemService) CreateTimeSlot(ctx context.Context, userID uuid.UUID, req ports.CreateTimeSlotRequest) (*entities.TimeSlot, error) {
	slot := &entities.TimeSlot{
		Slug:               entities.NewSlug("timeslot " + req.StartLocation),
		Category:           entities.CategoryInbox,
		CardTemplate:       entities.CardTemplateTimeSlot,
		Mode:               entities.TaskModeDraft,
		DateStart:          req.DateStart,
		DateEnd:            req.DateEnd,
		TimeStart:          req.TimeStart,
		TimeEnd:            req.TimeEnd,
		ReservedTimeOnRoad: req.ReservedTimeOnRoad,
		StartLocation:      req.StartLocation,
		CostPerHourCents:   req.CostPerHourCents,
		MinimumTimeSlot:    req.MinimumTimeSlot,
	}

	if err := s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		return repos.TimeSlots().Create(ctx, slot, userID)
	}); err != nil {
		return nil, fmt.Errorf("failed to create time slot: %w", err)
	}

	s.logCreated(userID, entities.CardTemplateTimeSlot, slot.Slug)
	return slot, nil
}

func (s *ItemService) ListTimeSlots(ctx context.Context, userID uuid.UUID, category string) ([]*entities.TimeSlot, error) {
	filter, err := parseOptionalCategory(category)
	if err != nil {
		return nil, err
	}
	return s.store.TimeSlots().ListByOwner(ctx, userID, filter)
}

func (s *ItemService) CreateJobSearch(ctx context.Context, userID uuid.UUID, req ports.CreateJobSearchRequest) (*entities.JobSearch, error) {
	js := &entities.JobSearch{
		Slug:         entities.NewSlug(req.Title),
		Category:     entities.CategoryInbox,
		CardTemplate: entities.CardTemplateJobSearch,
		Mode:         entities.TaskModeDraft,
		Title:        req.Title,
		CompanyName:  req.CompanyName,
		VacancyURL:   req.VacancyURL,
		Description:  req.Description,
		AppliedAt:    req.AppliedAt,
	}

	if err := s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		return repos.JobSearches().Create(ctx, js, userID)
	}); err != nil {
		return nil, fmt.Errorf("failed to create job search: %w", err)
	}

	s.logCreated(userID, entities.CardTemplateJobSearch, js.Slug)
	return js, nil
}

func (s *ItemService) ListJobSearches(ctx context.Context, userID uuid.UUID, category string) ([]*entities.JobSearch, error) {
	filter, err := parseOptionalCategory(category)
	if err != nil {
		return nil, err
	}
	return s.store.JobSearches().ListByOwner(ctx, userID, filter)
}

func (s *ItemService) CreateAdvertising(ctx context.Context, userID uuid.UUID, req ports.CreateAdvertisingRequest) (*entities.Advertising, error) {
	ad := &entities.Advertising{
		Slug:         entities.NewSlug(req.Title),
		Category:     entities.CategoryInbox,
		CardTemplate: entities.CardTemplateAdvertising,
		Mode:         entities.TaskModeDraft,
		Title:        req.Title,
		Description:  req.Description,
	}

	if err := s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		return repos.Advertising().Create(ctx, ad, userID)
	}); err != nil {
		return nil, fmt.Errorf("failed to create advertising: %w", err)
	}

	s.logCreated(userID, entities.CardTemplateAdvertising, ad.Slug)
	return ad, nil
}

func (s *ItemService) ListAdvertising(ctx context.Context, userID uuid.UUID, category string) ([]*entities.Advertising, error) {
	filter, err := parseOptionalCategory(category)
	if err != nil {
		return nil, err
	}
	return s.store.Advertising().ListByOwner(ctx, userID, filter)
}

func (s *ItemService) CreateActivity(ctx context.Context, userID uuid.UUID, req ports.CreateActivityRequest) (*entities.Activity, error) {
	a := &entities.Activity{
		Slug:         entities.NewSlug(req.Title),
		Category:     entities.CategoryInbox,
		Mode:         entities.TaskModeDraft,
		Title:        req.Title,
		Description:  req.Description,
		ActivityType: req.ActivityType,
		HappenedAt:   req.HappenedAt,
	}

	if err := s.store.WithinTx(ctx, func(repos ports.Repositories) error {
		return repos.Activities().Create(ctx, a, userID)
	}); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	s.logCreated(userID, "activity", a.Slug)
	return a, nil
}

func (s *ItemService) ListActivities(ctx context.Context, userID uuid.UUID, category string) ([]*entities.Activity, error) {
	filter, err := parseOptionalCategory(category)
	if err != nil {
		return nil, err
	}
	return s.store.Activities().ListByOwner(ctx, userID, filter)
}

func (s *ItemService) logCreated(userID uuid.UUID, kind entities.CardTemplate, slug string) {
	s.logger.LogUserAction(userID.String(), "item_created", map[string]interface{}{
		"kind": kind,
		"slug": slug,
	})
}
