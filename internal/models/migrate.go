package models

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrateAdapter runs the SQL migrations in migrations/ against the
// gorm connection. AutoMigrate is kept for development; deployments run
// the versioned migrations.
type MigrateAdapter struct {
	db     *DB
	source string
}

// NewMigrateAdapter creates a migration adapter reading from the
// migrations/ directory under the working directory.
func NewMigrateAdapter(db *DB) *MigrateAdapter {
	return &MigrateAdapter{db: db, source: "file://migrations"}
}

// NewMigrateAdapterWithSource creates a migration adapter with an
// explicit source URL, for callers running outside the repo root.
func NewMigrateAdapterWithSource(db *DB, source string) *MigrateAdapter {
	return &MigrateAdapter{db: db, source: source}
}

// RunMigrations applies all pending migrations
func (m *MigrateAdapter) RunMigrations() error {
	sqlDB, err := m.db.DB.DB()
	if err != nil {
		return fmt.Errorf("could not get sql.DB from gorm: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	migration, err := migrate.NewWithDatabaseInstance(m.source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := migration.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// Version reports the current migration version
func (m *MigrateAdapter) Version() (uint, bool, error) {
	sqlDB, err := m.db.DB.DB()
	if err != nil {
		return 0, false, err
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return 0, false, err
	}

	migration, err := migrate.NewWithDatabaseInstance(m.source, "postgres", driver)
	if err != nil {
		return 0, false, err
	}

	return migration.Version()
}
