package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/vadimbarashkov/expiring-url-shortener/migrations"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
)

// RunMigrations applies the embedded migrations of driver to the database
// at databaseURL.
func RunMigrations(driver, databaseURL string) error {
	const op = "database.RunMigrations"

	if _, err := sqlDriverName(driver); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	src, err := iofs.New(migrations.FS, driver)
	if err != nil {
		return fmt.Errorf("%s: failed to open migrations source: %w", op, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("%s: failed to initialize migrations: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return nil
}
