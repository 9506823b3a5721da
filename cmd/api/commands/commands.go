package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskmaster/gtd/internal/adapters/repository"
	"github.com/taskmaster/gtd/internal/application/services"
	"github.com/taskmaster/gtd/internal/infrastructure/cache"
	"github.com/taskmaster/gtd/internal/infrastructure/config"
	"github.com/taskmaster/gtd/internal/infrastructure/database"
	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/infrastructure/metrics"
	"github.com/taskmaster/gtd/internal/infrastructure/server"
	"github.com/taskmaster/gtd/internal/ports"
)

// NewRootCommand assembles the CLI
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gtd",
		Short:         "GTD work items API server",
		Long:          `gtd serves the work item API and carries the maintenance commands that go with it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewUserCommand())
	rootCmd.AddCommand(NewTokenCommand())
	rootCmd.AddCommand(NewSubtasksCommand())

	return rootCmd
}

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the API server with all configured routes, middleware and background maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	var upSteps, downSteps int

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, "up", upSteps)
		},
	}
	upCmd.Flags().IntVar(&upSteps, "steps", 0, "Number of migrations to apply (0 = all)")

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, "down", downSteps)
		},
	}
	downCmd.Flags().IntVar(&downSteps, "steps", 0, "Number of migrations to roll back (0 = all)")

	migrateCmd.AddCommand(upCmd, downCmd, &cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMigrationVersion(cmd)
		},
	})

	return migrateCmd
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Create and delete user accounts",
	}

	var req ports.CreateUserRequest
	var firstName, lastName string

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if firstName != "" {
				req.FirstName = &firstName
			}
			if lastName != "" {
				req.LastName = &lastName
			}
			return withUserService(cmd.Context(), func(ctx context.Context, users *services.UserService) error {
				user, err := users.CreateUser(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User created successfully:\n  ID: %s\n  Email: %s\n  Username: %s\n",
					user.ID, user.Email, user.Username)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&req.Email, "email", "", "User email (required)")
	createCmd.Flags().StringVar(&req.Username, "username", "", "Username (required)")
	createCmd.Flags().StringVar(&req.Password, "password", "", "User password (required)")
	createCmd.Flags().StringVar(&firstName, "first-name", "", "User first name")
	createCmd.Flags().StringVar(&lastName, "last-name", "", "User last name")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("password")

	var rawID string
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a user and anonymize their tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", rawID, err)
			}
			return withUserService(cmd.Context(), func(ctx context.Context, users *services.UserService) error {
				stats, err := users.DeleteUser(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"User %s deleted:\n  Tasks anonymized: %d\n  Tasks deleted: %d\n  Tasks preserved: %d\n  Contexts removed: %d\n",
					id, stats.TasksAnonymized, stats.TasksDeleted, stats.TasksPreserved, stats.ContextsRemoved)
				return nil
			})
		},
	}
	deleteCmd.Flags().StringVar(&rawID, "id", "", "User id (required)")
	_ = deleteCmd.MarkFlagRequired("id")

	userCmd.AddCommand(createCmd, deleteCmd)
	return userCmd
}

// NewTokenCommand mints bearer tokens for local use
func NewTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token helpers",
	}

	var rawID, email string
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", rawID, err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			token, err := services.NewAuthService(cfg.JWT).GenerateToken(id, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&rawID, "user-id", "", "User id (required)")
	issueCmd.Flags().StringVar(&email, "email", "", "Email to embed in the token")
	_ = issueCmd.MarkFlagRequired("user-id")

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}

// NewSubtasksCommand groups subtask maintenance
func NewSubtasksCommand() *cobra.Command {
	subtasksCmd := &cobra.Command{
		Use:   "subtasks",
		Short: "Subtask maintenance commands",
	}

	subtasksCmd.AddCommand(&cobra.Command{
		Use:   "rebuild-meta",
		Short: "Recompute subtasks_meta for every parent task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *app) error {
				tasks := services.NewTaskService(app.store, app.tracker, app.logger)
				n, err := tasks.RebuildSubtasksMeta(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt subtasks_meta for %d parent tasks\n", n)
				return nil
			})
		},
	})

	return subtasksCmd
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	srv, err := server.New(ctx, cfg, db, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	appLogger.Infow("Starting GTD API server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"cache_driver", cfg.Cache.Driver,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		appLogger.Infow("Shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMigrator(cfg *config.Config, db *database.DB) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.Database.MigrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

func runMigration(cmd *cobra.Command, direction string, steps int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m, err := newMigrator(cfg, db)
	if err != nil {
		return err
	}

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations to run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Migration %s completed successfully\n", direction)
	return nil
}

func showMigrationVersion(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m, err := newMigrator(cfg, db)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\nDirty: %t\n", version, dirty)
	return nil
}

// app is the slice of the server wiring that one-shot commands need.
type app struct {
	store   *repository.Store
	tracker *services.SubtaskTracker
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	subtaskCache, closeCache, err := cache.New(ctx, cfg.Cache, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize subtask cache: %w", err)
	}
	defer closeCache()

	if processLocalCache(cfg.Cache) {
		appLogger.Warnw("memory cache driver: a running server keeps its cached subtask listings until they expire",
			"driver", cfg.Cache.Driver,
			"ttl", cfg.Cache.SubtasksTTL.String(),
		)
	}

	m := metrics.New()
	return fn(ctx, &app{
		store:   repository.NewStore(db),
		tracker: services.NewSubtaskTracker(subtaskCache, m, appLogger),
		metrics: m,
		logger:  appLogger,
	})
}

// processLocalCache reports whether invalidations from this process are
// invisible to other processes.
func processLocalCache(cfg config.CacheConfig) bool {
	return cfg.Driver == "" || cfg.Driver == "memory"
}

func withUserService(ctx context.Context, fn func(context.Context, *services.UserService) error) error {
	return withApp(ctx, func(ctx context.Context, a *app) error {
		return fn(ctx, services.NewUserService(a.store, a.tracker, a.metrics, a.logger))
	})
}
