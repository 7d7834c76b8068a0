// Package main implements the entry point for the Ophelia API server,
// which generates marketing content for artisan products using hosted
// generative models.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/ophelia-ai/ophelia-api/internal/config"
	"github.com/ophelia-ai/ophelia-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String(
		"migrate",
		"",
		"run a migration command (up, down, status, version) and exit",
	)
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// run wires the application together and either executes a migration
// command or starts the HTTP server.
func run(migrateCmd string) error {
	// A .env file is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	db, err := openDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if migrateCmd != "" {
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				appLogger.Error("failed to close database", "error", closeErr)
			}
		}()
		return runMigrationCommand(db, migrateCmd, appLogger)
	}

	ctx := context.Background()

	// Pending migrations are applied on every start so a deploy never
	// runs against a stale schema.
	if err := applyMigrations(db, appLogger); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
