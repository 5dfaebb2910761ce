// Package migrations embeds the studio's schema migrations and applies
// them with golang-migrate over a CGO-free SQLite connection.
//
// The driver in ncruces_driver.go exists because golang-migrate's own
// sqlite3 driver pulls in mattn/go-sqlite3, which registers under the
// same driver name as ncruces/go-sqlite3 and collides at init. The
// custom driver speaks to whatever *sql.DB it is handed.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var embeddedMigrationsFS embed.FS

// MigrationsFS returns the embedded filesystem of migration SQL files.
func MigrationsFS() fs.FS {
	return embeddedMigrationsFS
}

// RunMigrations applies all pending migrations to the database. A fully
// migrated database is not an error: migrate.ErrNoChange is swallowed.
func RunMigrations(db *sql.DB) error {
	source, err := iofs.New(embeddedMigrationsFS, ".")
	if err != nil {
		return err
	}

	driver, err := WithInstance(db)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
