// Package db persists device profiles, calibration curves and analysis
// reports in SQLite. The schema is owned by the embedded golang-migrate
// migrations; OpenDB brings a database up to date before returning.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/absorbance.report/internal/monitoring"
	"github.com/banshee-data/absorbance.report/internal/timeutil"
	_ "modernc.org/sqlite"
)

var logf = monitoring.Component("db")

// DB wraps the SQLite handle together with the clock used for timestamps.
type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// pragmas are applied to every connection opened through OpenDB.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA foreign_keys = ON",
}

// OpenDB opens (or creates) the database at path, applies the connection
// pragmas and runs all pending migrations.
func OpenDB(path string) (*DB, error) {
	db, err := openRaw(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openRaw opens the database without touching the schema. The migrate CLI
// uses it so a dirty database can still be inspected and forced.
func openRaw(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// SQLite serialises writers; a single connection keeps the pragmas
	// consistent and avoids SQLITE_BUSY between our own goroutines.
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	return &DB{DB: sqlDB, clock: timeutil.RealClock{}}, nil
}

// SetClock replaces the clock used for created_at and updated_at stamps.
func (db *DB) SetClock(c timeutil.Clock) {
	if c == nil {
		c = timeutil.RealClock{}
	}
	db.clock = c
}

func (db *DB) now() time.Time {
	return db.clock.Now()
}

const (
	busyRetries   = 5
	busyBaseDelay = 20 * time.Millisecond
)

// isSQLiteBusy reports whether err is a transient lock error.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn, retrying with linear backoff while SQLite reports the
// database as locked. Any other error is returned immediately.
func retryOnBusy(clock timeutil.Clock, fn func() error) error {
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		err = fn()
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt < busyRetries {
			delay := busyBaseDelay * time.Duration(attempt+1)
			logf("database busy, retrying in %v (attempt %d/%d)", delay, attempt+1, busyRetries)
			clock.Sleep(delay)
		}
	}
	return fmt.Errorf("database still busy after %d retries: %w", busyRetries, err)
}
