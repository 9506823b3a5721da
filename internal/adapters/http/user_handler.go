package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/ports"
)

// UserHandler handles user-related requests
type UserHandler struct {
	userService ports.UserService
	logger      *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService ports.UserService, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// GetCurrentUser godoc
// @Summary Get the authenticated user
// @Tags users
// @Produce json
// @Success 200 {object} DataResponse[entities.User]
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/me [get]
func (h *UserHandler) GetCurrentUser(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	user, err := h.userService.GetUser(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(h.logger, "Get current user", err)
	}

	return c.JSON(http.StatusOK, data(user))
}

// DeleteCurrentUser godoc
// @Summary Delete the authenticated account
// @Description Anonymizes the caller's tasks, keeps those still shared with others and removes the account.
// @Tags users
// @Produce json
// @Success 200 {object} DataResponse[entities.AnonymizationStats]
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/me [delete]
func (h *UserHandler) DeleteCurrentUser(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	stats, err := h.userService.DeleteUser(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(h.logger, "Delete user", err)
	}

	return c.JSON(http.StatusOK, data(stats))
}

// GetStatistics godoc
// @Summary Task statistics for the authenticated user
// @Tags users
// @Produce json
// @Success 200 {object} DataResponse[entities.TaskStatistics]
// @Security BearerAuth
// @Router /users/me/stats [get]
func (h *UserHandler) GetStatistics(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	stats, err := h.userService.Statistics(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(h.logger, "User statistics", err)
	}

	return c.JSON(http.StatusOK, data(stats))
}
