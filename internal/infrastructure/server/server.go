package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/taskmaster/gtd/docs"
	httpHandlers "github.com/taskmaster/gtd/internal/adapters/http"
	"github.com/taskmaster/gtd/internal/adapters/repository"
	"github.com/taskmaster/gtd/internal/application/services"
	"github.com/taskmaster/gtd/internal/infrastructure/cache"
	"github.com/taskmaster/gtd/internal/infrastructure/config"
	"github.com/taskmaster/gtd/internal/infrastructure/database"
	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/infrastructure/metrics"
)

// Server represents the HTTP server
type Server struct {
	echo      *echo.Echo
	config    *config.Config
	logger    *logger.Logger
	db        *database.DB
	metrics   *metrics.Metrics
	scheduler *services.MaintenanceScheduler
	closeFns  []func() error
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New wires repositories, cache, services and handlers into an echo server.
func New(ctx context.Context, cfg *config.Config, db *database.DB, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	e.Validator = &CustomValidator{validator: validator.New()}
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	subtaskCache, closeCache, err := cache.New(ctx, cfg.Cache, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize subtask cache: %w", err)
	}

	m := metrics.New()
	store := repository.NewStore(db)

	// Initialize services
	tracker := services.NewSubtaskTracker(subtaskCache, m, appLogger)
	authService := services.NewAuthService(cfg.JWT)
	elementService := services.NewElementService(store, tracker, m, appLogger)
	taskService := services.NewTaskService(store, tracker, appLogger)
	userService := services.NewUserService(store, tracker, m, appLogger)
	itemService := services.NewItemService(store, appLogger)

	// Initialize handlers
	handlers := &httpHandlers.Handlers{
		Elements: httpHandlers.NewElementHandler(elementService, appLogger),
		Tasks:    httpHandlers.NewTaskHandler(taskService, appLogger),
		Users:    httpHandlers.NewUserHandler(userService, appLogger),
		Items:    httpHandlers.NewItemHandler(itemService, appLogger),
		Catalog:  httpHandlers.NewCatalogHandler(),
	}

	server := &Server{
		echo:     e,
		config:   cfg,
		logger:   appLogger,
		db:       db,
		metrics:  m,
		closeFns: []func() error{closeCache},
	}

	if cfg.Maintenance.MetaRebuildCron != "" {
		server.scheduler = services.NewMaintenanceScheduler(appLogger)
		if _, err := server.scheduler.ScheduleMetaRebuild(cfg.Maintenance.MetaRebuildCron, taskService); err != nil {
			_ = closeCache()
			return nil, err
		}
	}

	server.setupMiddleware()
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}
	server.setupRoutes(handlers, authService)

	return server, nil
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
				"request_id", values.RequestID,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}))

	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.config.Security.RateLimitRequests),
				Burst:     s.config.Security.RateLimitRequests,
				ExpiresIn: s.config.Security.RateLimitWindow,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, httpHandlers.ErrorResponse{Error: "rate limit exceeded"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, httpHandlers.ErrorResponse{Error: "rate limit exceeded"})
		},
	}))

	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: s.config.Server.RequestTimeout,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(h *httpHandlers.Handlers, authService *services.AuthService) {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := s.echo.Group("/api/v1", s.authMiddleware(authService))

	v1.GET("/categories", h.Catalog.ListCategories)
	v1.GET("/card_templates", h.Catalog.ListCardTemplates)

	v1.PATCH("/elements/:slug/position", h.Elements.UpdatePosition)

	v1.GET("/user_tasks", h.Tasks.ListUserTasks)
	tasks := v1.Group("/tasks")
	tasks.POST("", h.Tasks.CreateTask)
	tasks.PUT("/:slug", h.Tasks.UpdateTask)
	tasks.DELETE("/:slug", h.Tasks.DeleteTask)
	tasks.GET("/:slug/subtasks", h.Tasks.GetSubtasks)
	tasks.PATCH("/:slug/note", h.Tasks.SaveNote)
	tasks.POST("/:slug/delegate", h.Tasks.DelegateTask)

	users := v1.Group("/users")
	users.GET("/me", h.Users.GetCurrentUser)
	users.DELETE("/me", h.Users.DeleteCurrentUser)
	users.GET("/me/stats", h.Users.GetStatistics)

	v1.POST("/time_slots", h.Items.CreateTimeSlot)
	v1.GET("/time_slots", h.Items.ListTimeSlots)
	v1.POST("/job_searches", h.Items.CreateJobSearch)
	v1.GET("/job_searches", h.Items.ListJobSearches)
	v1.POST("/advertising", h.Items.CreateAdvertising)
	v1.GET("/advertising", h.Items.ListAdvertising)
	v1.POST("/activities", h.Items.CreateActivity)
	v1.GET("/activities", h.Items.ListActivities)
}

// setupMetrics exposes Prometheus metrics
func (s *Server) setupMetrics() {
	s.echo.Use(s.metrics.Middleware())
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	if err := s.db.HealthCheck(); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.db.GetConnectionInfo(),
		}
	}

	checks["cache"] = map[string]interface{}{
		"status": "ok",
		"driver": s.config.Cache.Driver,
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.db.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the scheduler, if any, and then the HTTP server
func (s *Server) Start(address string) error {
	if s.scheduler != nil {
		s.scheduler.Start()
		s.logger.Infow("Maintenance scheduler started", "meta_rebuild_cron", s.config.Maintenance.MetaRebuildCron)
	}

	s.logger.Infow("Starting server", "address", address)
	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.Server.IdleTimeout
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	err := s.echo.Shutdown(ctx)
	for _, closeFn := range s.closeFns {
		if cerr := closeFn(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}

// customErrorHandler renders every error as {"success": false, "error": "..."}.
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  = http.StatusText(http.StatusInternalServerError)
		)

		var he *echo.HTTPError
		var ve validator.ValidationErrors
		switch {
		case errors.As(err, &he):
			code = he.Code
			msg = fmt.Sprint(he.Message)
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		case errors.As(err, &ve):
			code = http.StatusBadRequest
			msg = ve.Error()
		}

		if code >= http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, httpHandlers.ErrorResponse{Success: false, Error: msg})
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}
