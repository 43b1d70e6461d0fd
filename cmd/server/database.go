package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasks-api/internal/config"
	"github.com/phrazzld/tasks-api/internal/platform/sqlite"
)

// pgxDriverName is the database/sql driver registered by pgx/v5/stdlib.
const pgxDriverName = "pgx"

// openDatabase connects to the configured database and configures the pool.
// The returned func closes the connection.
func openDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*sql.DB, func(), error) {
	db, err := connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info("database connection established", slog.String("driver", cfg.Database.Driver))
	return db, func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}, nil
}

func connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		return db.DB, nil
	case "postgres":
		db, err := sql.Open(pgxDriverName, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// sqlxFor wraps db for the sqlite stores.
func sqlxFor(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, sqlite.DriverName)
}
