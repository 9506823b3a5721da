package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/ports"
)

// ElementHandler handles category moves for any work item
type ElementHandler struct {
	elementService ports.ElementService
	logger         *logger.Logger
}

// NewElementHandler creates a new element handler
func NewElementHandler(elementService ports.ElementService, logger *logger.Logger) *ElementHandler {
	return &ElementHandler{
		elementService: elementService,
		logger:         logger,
	}
}

// UpdatePosition godoc
// @Summary Move a work item to another category
// @Description Looks the slug up as a task, then a time slot, then a job search.
// @Tags elements
// @Accept json
// @Produce json
// @Param slug path string true "Element slug"
// @Param request body ports.PositionRequest true "Target category"
// @Success 200 {object} ports.PositionResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /elements/{slug}/position [patch]
func (h *ElementHandler) UpdatePosition(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req ports.PositionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.elementService.UpdatePosition(c.Request().Context(), userID, c.Param("slug"), req.Position)
	if err != nil {
		return toHTTPError(h.logger, "Update position", err)
	}

	return c.JSON(http.StatusOK, result)
}
