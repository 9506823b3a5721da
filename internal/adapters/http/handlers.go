package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/gtd/internal/domain/entities"
	"github.com/taskmaster/gtd/internal/infrastructure/logger"
)

// Handlers bundles every route handler the server mounts.
type Handlers struct {
	Elements *ElementHandler
	Tasks    *TaskHandler
	Users    *UserHandler
	Items    *ItemHandler
	Catalog  *CatalogHandler
}

// CatalogHandler serves the fixed category and card template lists
type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

// ListCategories godoc
// @Summary List categories
// @Tags catalog
// @Produce json
// @Success 200 {object} ListResponse[entities.Category]
// @Security BearerAuth
// @Router /categories [get]
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, list(entities.Categories))
}

// ListCardTemplates godoc
// @Summary List card templates
// @Tags catalog
// @Produce json
// @Success 200 {object} ListResponse[entities.CardTemplate]
// @Security BearerAuth
// @Router /card_templates [get]
func (h *CatalogHandler) ListCardTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, list(entities.CardTemplates))
}

// Utility functions and helper types

func getUserIDFromContext(c echo.Context) uuid.UUID {
	userStr, ok := c.Get("user").(string)
	if !ok {
		return uuid.Nil
	}

	userID, err := uuid.Parse(userStr)
	if err != nil {
		return uuid.Nil
	}

	return userID
}

// currentUser returns the authenticated caller or a 401 error.
func currentUser(c echo.Context) (uuid.UUID, error) {
	userID := getUserIDFromContext(c)
	if userID == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return userID, nil
}

// bindAndValidate decodes the request body into req and runs the validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// toHTTPError maps domain errors to status codes. Anything unrecognized is
// logged and surfaces as a 500 without leaking details.
func toHTTPError(log *logger.Logger, op string, err error) error {
	switch {
	case errors.Is(err, entities.ErrInvalidCategory),
		errors.Is(err, entities.ErrInvalidPriority),
		errors.Is(err, entities.ErrInvalidTaskMode),
		errors.Is(err, entities.ErrInvalidCardTemplate),
		errors.Is(err, entities.ErrInvalidRole),
		errors.Is(err, entities.ErrInvalidParent),
		errors.Is(err, entities.ErrEmptyTitle),
		errors.Is(err, entities.ErrSelfDelegation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, entities.ErrForbidden.Error())
	case errors.Is(err, entities.ErrTaskNotFound),
		errors.Is(err, entities.ErrParentNotFound),
		errors.Is(err, entities.ErrElementNotFound),
		errors.Is(err, entities.ErrUserNotFound),
		errors.Is(err, entities.ErrContextNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrUserAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	log.Errorw(op+" failed", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

// Request/Response types

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type DataResponse[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type ListResponse[T any] struct {
	Success bool `json:"success"`
	Data    []T  `json:"data"`
	Count   int  `json:"count"`
}

func list[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Success: true, Data: items, Count: len(items)}
}

func data[T any](v T) DataResponse[T] {
	return DataResponse[T]{Success: true, Data: v}
}
