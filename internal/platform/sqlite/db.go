// Package sqlite implements the store interfaces on SQLite for local runs and
// hermetic tests.
//
// SQLite has no row locks. Every connection begins write transactions with
// BEGIN IMMEDIATE, so writers are serialized database-wide. That satisfies the
// per-owner serialization the cascade needs, but different owners also queue
// behind each other; use the postgres backend when that matters.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// busyTimeout bounds how long a writer waits for the database lock before
// SQLITE_BUSY is returned.
const busyTimeout = 5 * time.Second

// DSN turns a file path or file: URL into a DSN with the pragmas the stores rely on.
func DSN(url string) string {
	dsn := url
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	params := []string{
		"_txlock=immediate",
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()),
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
	}
	return dsn + sep + strings.Join(params, "&")
}

// Open opens the database at url and verifies the connection.
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverName, DSN(url))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	return db, nil
}
