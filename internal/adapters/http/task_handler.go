package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// CreateTask godoc
// @Summary Create a task
// @Description Creates a task owned by the caller. A parent_slug makes it a subtask.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.CreateTaskRequest true "Task data"
// @Success 201 {object} DataResponse[entities.Task]
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req ports.CreateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), userID, req)
	if err != nil {
		return toHTTPError(h.logger, "Create task", err)
	}

	return c.JSON(http.StatusCreated, data(task))
}

// UpdateTask godoc
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param slug path string true "Task slug"
// @Param request body ports.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} DataResponse[entities.Task]
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{slug} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req ports.UpdateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), userID, c.Param("slug"), req)
	if err != nil {
		return toHTTPError(h.logger, "Update task", err)
	}

	return c.JSON(http.StatusOK, data(task))
}

// DeleteTask godoc
// @Summary Delete a task and its subtasks
// @Tags tasks
// @Param slug path string true "Task slug"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{slug} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	if err := h.taskService.DeleteTask(c.Request().Context(), userID, c.Param("slug")); err != nil {
		return toHTTPError(h.logger, "Delete task", err)
	}

	return c.NoContent(http.StatusNoContent)
}

// ListUserTasks godoc
// @Summary List the caller's tasks
// @Tags tasks
// @Produce json
// @Param category query string false "Category filter"
// @Success 200 {object} ListResponse[entities.TaskView]
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /user_tasks [get]
func (h *TaskHandler) ListUserTasks(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	tasks, err := h.taskService.ListUserTasks(c.Request().Context(), userID, c.QueryParam("category"))
	if err != nil {
		return toHTTPError(h.logger, "List user tasks", err)
	}

	return c.JSON(http.StatusOK, list(tasks))
}

// GetSubtasks godoc
// @Summary List subtasks of a task
// @Tags tasks
// @Produce json
// @Param slug path string true "Parent task slug"
// @Success 200 {object} ListResponse[entities.TaskView]
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{slug}/subtasks [get]
func (h *TaskHandler) GetSubtasks(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	subtasks, err := h.taskService.GetSubtasks(c.Request().Context(), userID, c.Param("slug"))
	if err != nil {
		return toHTTPError(h.logger, "Get subtasks", err)
	}

	return c.JSON(http.StatusOK, list(subtasks))
}

// SaveNote godoc
// @Summary Save the caller's personal note on a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param slug path string true "Task slug"
// @Param request body ports.NoteRequest true "Note"
// @Success 200 {object} DataResponse[entities.UserTaskContext]
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{slug}/note [patch]
func (h *TaskHandler) SaveNote(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req ports.NoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tc, err := h.taskService.SaveNote(c.Request().Context(), userID, c.Param("slug"), req.Note)
	if err != nil {
		return toHTTPError(h.logger, "Save note", err)
	}

	return c.JSON(http.StatusOK, data(tc))
}

// DelegateTask godoc
// @Summary Delegate a task to another user
// @Tags tasks
// @Accept json
// @Produce json
// @Param slug path string true "Task slug"
// @Param request body ports.DelegateTaskRequest true "Delegation target"
// @Success 200 {object} DataResponse[entities.UserTaskContext]
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{slug}/delegate [post]
func (h *TaskHandler) DelegateTask(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req ports.DelegateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tc, err := h.taskService.DelegateTask(c.Request().Context(), userID, c.Param("slug"), req)
	if err != nil {
		return toHTTPError(h.logger, "Delegate task", err)
	}

	return c.JSON(http.StatusOK, data(tc))
}
