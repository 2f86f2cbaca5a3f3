package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/banshee-data/absorbance.report/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the embedded schema migrations.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// withMigrate builds a migrator over migrations and hands it to fn. The
// migrator is never closed since that would close the shared *sql.DB.
func (db *DB) withMigrate(migrations fs.FS, fn func(*migrate.Migrate) error) error {
	src, err := iofs.New(migrations, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("new migrator: %w", err)
	}
	m.Log = migrateLogger{logf: monitoring.Component("migrate")}
	return fn(m)
}

// step wraps the result of one migrate call, treating ErrNoChange as done.
func step(what string, err error) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return fmt.Errorf("migrate %s: %w", what, err)
}

// MigrateUp applies every pending migration.
func (db *DB) MigrateUp(migrations fs.FS) error {
	return db.withMigrate(migrations, func(m *migrate.Migrate) error {
		return step("up", m.Up())
	})
}

// MigrateDown reverts the newest applied migration.
func (db *DB) MigrateDown(migrations fs.FS) error {
	return db.withMigrate(migrations, func(m *migrate.Migrate) error {
		return step("down", m.Steps(-1))
	})
}

// MigrateTo moves the schema up or down to version.
func (db *DB) MigrateTo(migrations fs.FS, version uint) error {
	return db.withMigrate(migrations, func(m *migrate.Migrate) error {
		return step(fmt.Sprintf("to %d", version), m.Migrate(version))
	})
}

// MigrateForce records version as current without running anything, to
// clear a dirty flag after a failed migration was repaired by hand.
func (db *DB) MigrateForce(migrations fs.FS, version int) error {
	return db.withMigrate(migrations, func(m *migrate.Migrate) error {
		return step(fmt.Sprintf("force %d", version), m.Force(version))
	})
}

// MigrateVersion reports the applied version; a fresh database is 0.
func (db *DB) MigrateVersion(migrations fs.FS) (version uint, dirty bool, err error) {
	err = db.withMigrate(migrations, func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		return verr
	})
	return version, dirty, err
}

// migrateLogger adapts a component logger to migrate.Logger.
type migrateLogger struct {
	logf func(format string, v ...interface{})
}

func (l migrateLogger) Printf(format string, v ...interface{}) { l.logf(format, v...) }
func (l migrateLogger) Verbose() bool                         { return false }
