// Package migrations applies the embedded schema migrations with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
)

// TableName is the goose version table.
const TableName = "schema_migrations"

// Supported commands.
const (
	CommandUp      = "up"
	CommandDown    = "down"
	CommandReset   = "reset"
	CommandStatus  = "status"
	CommandVersion = "version"
)

// Commands lists every supported command.
var Commands = []string{CommandUp, CommandDown, CommandReset, CommandStatus, CommandVersion}

//go:embed postgres/*.sql sqlite/*.sql
var embedded embed.FS

// goose keeps dialect, base FS and logger in package globals.
var gooseMu sync.Mutex

// slogGooseLogger adapts the goose logger interface to use slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf forwards goose progress messages at info level.
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level. It does not exit; the error is returned to the caller.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// dialectFor maps a database driver name to the goose dialect and migration directory.
func dialectFor(driver string) (goose.Dialect, string, error) {
	switch driver {
	case "postgres", "pgx":
		return goose.DialectPostgres, "postgres", nil
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3, "sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Files returns the embedded migration file names for driver.
func Files(driver string) ([]string, error) {
	_, dir, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return fs.Glob(embedded, dir+"/*.sql")
}

// Run executes command against db using the migrations for driver.
func Run(ctx context.Context, db *sql.DB, driver, command string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(
		slog.String("component", "migrations"),
		slog.String("command", command),
		slog.String("driver", driver))

	dialect, dir, err := dialectFor(driver)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedded)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(&slogGooseLogger{logger: log})
	goose.SetTableName(TableName)
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	start := time.Now()
	log.Info("starting migration command")

	switch command {
	case CommandUp:
		err = goose.UpContext(ctx, db, dir)
	case CommandDown:
		err = goose.DownContext(ctx, db, dir)
	case CommandReset:
		err = goose.ResetContext(ctx, db, dir)
	case CommandStatus:
		err = goose.StatusContext(ctx, db, dir)
	case CommandVersion:
		err = goose.VersionContext(ctx, db, dir)
	default:
		return fmt.Errorf(
			"unknown migration command: %s (expected up, down, reset, status or version)",
			command,
		)
	}

	if err != nil {
		log.Error("migration command failed",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return fmt.Errorf("migration command '%s' failed: %w", command, err)
	}

	log.Info("migration command executed successfully",
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) error {
	return Run(ctx, db, driver, CommandUp, logger)
}

// CurrentVersion returns the applied schema version.
func CurrentVersion(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	dialect, _, err := dialectFor(driver)
	if err != nil {
		return 0, err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetTableName(TableName)
	if err := goose.SetDialect(string(dialect)); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, db)
}
