package catalog

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/logweave/logweave/internal/logx"
)

//go:embed migrations/*
var migrationFiles embed.FS

// runMigrations applies every pending up migration for driver against db.
func runMigrations(driver string, db *sql.DB) error {
	var m *migrate.Migrate

	switch driver {
	case "sqlite3":
		dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("migrate: sqlite3 instance: %w", err)
		}
		src, err := iofs.New(migrationFiles, "migrations/sqlite3")
		if err != nil {
			return fmt.Errorf("migrate: load sqlite3 sources: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", dbDriver)
		if err != nil {
			return fmt.Errorf("migrate: new sqlite3 instance: %w", err)
		}
	case "mysql":
		dbDriver, err := mysql.WithInstance(db, &mysql.Config{})
		if err != nil {
			return fmt.Errorf("migrate: mysql instance: %w", err)
		}
		src, err := iofs.New(migrationFiles, "migrations/mysql")
		if err != nil {
			return fmt.Errorf("migrate: load mysql sources: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "mysql", dbDriver)
		if err != nil {
			return fmt.Errorf("migrate: new mysql instance: %w", err)
		}
	default:
		return fmt.Errorf("migrate: unsupported driver %q", driver)
	}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			logx.Info("catalog schema already up to date")
			return nil
		}
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}
