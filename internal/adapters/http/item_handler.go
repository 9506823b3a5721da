package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/ports"
)

// ItemHandler serves create and list for time slots, job searches,
// advertising and activities.
type ItemHandler struct {
	itemService ports.ItemService
	logger      *logger.Logger
}

func NewItemHandler(itemService ports.ItemService, logger *logger.Logger) *ItemHandler {
	return &ItemHandler{
		itemService: itemService,
		logger:      logger,
	}
}

func createItem[Req any, T any](h *ItemHandler, c echo.Context, op string, create func(context.Context, uuid.UUID, Req) (T, error)) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req Req
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	item, err := create(c.Request().Context(), userID, req)
	if err != nil {
		return toHTTPError(h.logger, op, err)
	}
	return c.JSON(http.StatusCreated, data(item))
}

func listItems[T any](h *ItemHandler, c echo.Context, op string, fetch func(context.Context, uuid.UUID, string) ([]T, error)) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	items, err := fetch(c.Request().Context(), userID, c.QueryParam("category"))
	if err != nil {
		return toHTTPError(h.logger, op, err)
	}
	return c.JSON(http.StatusOK, list(items))
}

// CreateTimeSlot godoc
// @Summary Create a time slot
// @Tags items
// @Accept json
// @Produce json
// @Param request body ports.CreateTimeSlotRequest true "Time slot"
// @Success 201 {object} DataResponse[entities.TimeSlot]
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /time_slots [post]
func (h *ItemHandler) CreateTimeSlot(c echo.Context) error {
	return createItem(h, c, "Create time slot", h.itemService.CreateTimeSlot)
}

// ListTimeSlots godoc
// @Summary List the caller's time slots
// @Tags items
// @Produce json
// @Param category query string false "Category filter"
// @Success 200 {object} ListResponse[entities.TimeSlot]
// @Security BearerAuth
// @Router /time_slots [get]
func (h *ItemHandler) ListTimeSlots(c echo.Context) error {
	return listItems(h, c, "List time slots", h.itemService.ListTimeSlots)
}

// CreateJobSearch godoc
// @Summary Create a job search entry
// @Tags items
// @Accept json
// @Produce json
// @Param request body ports.CreateJobSearchRequest true "Job search"
// @Success 201 {object} DataResponse[entities.JobSearch]
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /job_searches [post]
func (h *ItemHandler) CreateJobSearch(c echo.Context) error {
	return createItem(h, c, "Create job search", h.itemService.CreateJobSearch)
}

// ListJobSearches godoc
// @Summary List the caller's job searches
// @Tags items
// @Produce json
// @Param category query string false "Category filter"
// @Success 200 {object} ListResponse[entities.JobSearch]
// @Security BearerAuth
// @Router /job_searches [get]
func (h *ItemHandler) ListJobSearches(c echo.Context) error {
	return listItems(h, c, "List job searches", h.itemService.ListJobSearches)
}

// CreateAdvertising godoc
// @Summary Create an advertising post
// @Tags items
// @Accept json
// @Produce json
// @Param request body ports.CreateAdvertisingRequest true "Advertising"
// @Success 201 {object} DataResponse[entities.Advertising]
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /advertising [post]
func (h *ItemHandler) CreateAdvertising(c echo.Context) error {
	return createItem(h, c, "Create advertising", h.itemService.CreateAdvertising)
}

// ListAdvertising godoc
// @Summary List the caller's advertising posts
// @Tags items
// @Produce json
// @Param category query string false "Category filter"
// @Success 200 {object} ListResponse[entities.Advertising]
// @Security BearerAuth
// @Router /advertising [get]
func (h *ItemHandler) ListAdvertising(c echo.Context) error {
	return listItems(h, c, "List advertising", h.itemService.ListAdvertising)
}

// CreateActivity godoc
// @Summary Log an activity
// @Tags items
// @Accept json
// @Produce json
// @Param request body ports.CreateActivityRequest true "Activity"
// @Success 201 {object} DataResponse[entities.Activity]
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /activities [post]
func (h *ItemHandler) CreateActivity(c echo.Context) error {
	return createItem(h, c, "Create activity", h.itemService.CreateActivity)
}

// ListActivities godoc
// @Summary List the caller's activities
// @Tags items
// @Produce json
// @Param category query string false "Category filter"
// @Success 200 {object} ListResponse[entities.Activity]
// @Security BearerAuth
// @Router /activities [get]
func (h *ItemHandler) ListActivities(c echo.Context) error {
	return listItems(h, c, "List activities", h.itemService.ListActivities)
}
