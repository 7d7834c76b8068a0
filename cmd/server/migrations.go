package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/ophelia-ai/ophelia-api/migrations"
)

// configureGoose points goose at the embedded migrations and routes its
// output through slog.
func configureGoose() error {
	goose.SetLogger(&slogGooseLogger{})
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// applyMigrations brings the schema up to date with the embedded
// migration files.
func applyMigrations(db *sql.DB, logger *slog.Logger) error {
	if err := configureGoose(); err != nil {
		return err
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	logger.Info("Database schema is up to date", "version", version)
	return nil
}

// runMigrationCommand executes a single migration command for the
// -migrate flag and returns once it completes.
func runMigrationCommand(db *sql.DB, command string, logger *slog.Logger) error {
	if err := configureGoose(); err != nil {
		return err
	}

	logger.Info("Running migration command", "command", command)

	switch command {
	case "up":
		return goose.Up(db, ".")
	case "down":
		return goose.Down(db, ".")
	case "status":
		return goose.Status(db, ".")
	case "version":
		version, err := goose.GetDBVersion(db)
		if err != nil {
			return err
		}
		logger.Info("Current migration version", "version", version)
		return nil
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
}

// slogGooseLogger adapts goose's logger interface to slog.
type slogGooseLogger struct{}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...), "component", "goose")
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...), "component", "goose")
}
