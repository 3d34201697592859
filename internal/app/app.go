package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/config"
	"github.com/temcen/retouch/internal/database"
	"github.com/temcen/retouch/internal/docs"
	"github.com/temcen/retouch/internal/handlers"
	"github.com/temcen/retouch/internal/middleware"
	"github.com/temcen/retouch/internal/services"
	"github.com/temcen/retouch/internal/validation"
)

type App struct {
	config     *config.Config
	logger     *logrus.Logger
	db         *database.Database
	services   *services.Services
	handlers   *handlers.Handlers
	validation *middleware.ValidationMiddleware
	router     *gin.Engine
	cancel     context.CancelFunc
}

func New(cfg *config.Config) (*App, error) {
	return NewWithLogger(cfg, setupLogger(cfg))
}

// NewWithLogger builds the application around an existing logger.
func NewWithLogger(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
	}

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	svcs, err := services.New(cfg, app.logger, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svcs

	schemas, err := validation.NewDefaultSchemaValidator()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load request schemas: %w", err)
	}
	app.validation = middleware.NewValidationMiddleware(schemas)

	app.handlers = handlers.New(app.logger, svcs)
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Start launches the feedback workers and the event consumer.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.services.Start(ctx, a.logger)
}

// Shutdown drains the feedback queues before closing the connections.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan error, 1)
	go func() { done <- a.services.Stop() }()

	var stopErr error
	select {
	case stopErr = <-done:
	case <-ctx.Done():
		stopErr = fmt.Errorf("feedback drain: %w", ctx.Err())
	}

	if err := errors.Join(stopErr, a.db.Close()); err != nil {
		a.logger.WithError(err).Error("Error during shutdown")
		return err
	}
	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(&a.config.Security.CORS))

	// Health and metrics are unauthenticated
	router.GET("/health", a.handlers.Health.Check)
	router.GET("/health/live", a.handlers.Health.Live)
	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, a.handlers.Metrics.Prometheus())
	}

	docs.NewHandler(docs.DefaultConfig()).RegisterRoutes(router)

	vm := a.validation
	api := router.Group("/api/v1")
	{
		api.Use(middleware.Auth(a.services.Auth, a.logger))
		if a.services.RateLimit != nil {
			api.Use(middleware.RateLimit(a.services.RateLimit, a.logger))
		}
		api.Use(vm.ValidateHeaders())

		api.GET("/profiles", a.handlers.Enhancement.ListProfiles)
		api.GET("/profiles/:id", a.handlers.Enhancement.GetProfile)

		api.POST("/recommendations", vm.ValidateQueryParams(), vm.ValidateRecommendationRequest(), a.handlers.Enhancement.Recommend)
		api.POST("/feedback", vm.ValidateEnhancementFeedback(), a.handlers.Feedback.Submit)

		users := api.Group("/users/:userId", vm.ValidateQueryParams())
		{
			users.GET("/learning", a.handlers.Enhancement.LearningReport)
			users.GET("/custom-profiles", a.handlers.Enhancement.ListCustomProfiles)
			users.POST("/custom-profiles", a.handlers.Enhancement.CreateCustomProfile)
		}

		custom := api.Group("/custom-profiles/:profileId", vm.ValidateQueryParams())
		{
			custom.GET("", a.handlers.Enhancement.GetCustomProfile)
			custom.POST("/feedback", vm.ValidateCustomProfileFeedback(), a.handlers.Feedback.SubmitCustom)
		}
	}

	a.router = router
}
