package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ophelia-ai/ophelia-api/internal/config"
	"github.com/ophelia-ai/ophelia-api/internal/generation"
	"github.com/ophelia-ai/ophelia-api/internal/platform/gemini"
	"github.com/ophelia-ai/ophelia-api/internal/platform/postgres"
	"github.com/ophelia-ai/ophelia-api/internal/platform/storage"
	"github.com/ophelia-ai/ophelia-api/internal/quota"
	"github.com/ophelia-ai/ophelia-api/internal/service"
	"github.com/ophelia-ai/ophelia-api/internal/service/auth"
	"github.com/ophelia-ai/ophelia-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	userStore    store.UserStore
	contentStore store.ContentStore

	// Service interfaces
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	generator        *gemini.Generator
	imageStore       generation.ImageStore
	limiter          quota.Limiter
	contentService   service.ContentService
	userService      service.UserService

	// Held only for cleanup.
	redisClient *redis.Client
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.passwordVerifier = auth.NewBcryptVerifier()

	app.userStore = postgres.NewPostgresUserStore(db, cfg.Auth.BcryptCost, logger)
	app.contentStore = postgres.NewPostgresContentStore(db, logger)

	app.generator, err = gemini.NewGenerator(
		ctx,
		logger.With("component", "llm_generator"),
		cfg.LLM,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized", "model", cfg.LLM.ModelName)

	// Image storage is optional. Without it, generation still works but
	// produced images cannot be persisted.
	if cfg.Storage.URL != "" {
		app.imageStore, err = storage.NewSupabaseImageStore(cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize image store: %w", err)
		}
		logger.Info("Image store initialized", "bucket", cfg.Storage.Bucket)
	} else {
		logger.Info("Image storage not configured, image uploads disabled")
	}

	app.limiter, err = setupLimiter(app)
	if err != nil {
		return nil, fmt.Errorf("failed to setup quota limiter: %w", err)
	}

	app.userService = service.NewUserService(app.userStore, db, logger)

	app.contentService = service.NewContentService(
		app.generator,
		app.generator,
		app.imageStore,
		app.contentStore,
		logger,
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupLimiter initializes the daily generation quota. Quota enforcement
// is skipped entirely when Redis is not configured.
func setupLimiter(app *application) (quota.Limiter, error) {
	cfg := app.config.Quota
	if cfg.RedisURL == "" || cfg.DailyLimit <= 0 {
		app.logger.Info("Generation quota not configured, requests are unlimited")
		return quota.NoopLimiter{}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	app.redisClient = redis.NewClient(opts)
	app.logger.Info("Generation quota enabled", "daily_limit", cfg.DailyLimit)

	return quota.NewRedisLimiter(app.redisClient, cfg.DailyLimit, app.logger), nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
