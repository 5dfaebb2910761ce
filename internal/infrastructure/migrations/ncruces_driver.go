package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4/database"
)

// versionTable is where applied migration versions are tracked.
const versionTable = "schema_migrations"

// ncrucesDriver is a golang-migrate database.Driver for connections
// opened with ncruces/go-sqlite3. The stock sqlite3 driver cannot be
// used: it imports mattn/go-sqlite3, which registers itself under the
// same "sqlite3" name as the ncruces driver and collides at init.
type ncrucesDriver struct {
	db       *sql.DB
	isLocked atomic.Bool
}

// WithInstance wraps an existing connection in a migration driver. The
// connection must have been opened with the ncruces sqlite3 driver.
func WithInstance(instance *sql.DB) (database.Driver, error) {
	if err := instance.Ping(); err != nil {
		return nil, err
	}

	d := &ncrucesDriver{db: instance}
	if err := d.ensureVersionTable(); err != nil {
		return nil, err
	}
	return d, nil
}

// ensureVersionTable creates the version tracking table if needed.
func (d *ncrucesDriver) ensureVersionTable() (err error) {
	if err = d.Lock(); err != nil {
		return err
	}
	defer func() {
		if e := d.Unlock(); e != nil {
			err = errors.Join(err, e)
		}
	}()

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (version uint64, dirty bool);
	CREATE UNIQUE INDEX IF NOT EXISTS version_unique ON %s (version);
	`, versionTable, versionTable)

	_, err = d.db.Exec(query)
	return err
}

// Open satisfies database.Driver but is unsupported; connections are
// always handed in through WithInstance.
func (d *ncrucesDriver) Open(_ string) (database.Driver, error) {
	return nil, errors.New("Open not implemented; use WithInstance with an ncruces connection")
}

// Close closes the database connection.
func (d *ncrucesDriver) Close() error {
	return d.db.Close()
}

// Lock acquires the in-process migration lock.
func (d *ncrucesDriver) Lock() error {
	if !d.isLocked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

// Unlock releases the in-process migration lock.
func (d *ncrucesDriver) Unlock() error {
	if !d.isLocked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

// Run executes one migration inside a transaction.
func (d *ncrucesDriver) Run(migration io.Reader) error {
	raw, err := io.ReadAll(migration)
	if err != nil {
		return err
	}
	return d.runInTx(string(raw))
}

func (d *ncrucesDriver) runInTx(query string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}
	if _, err := tx.Exec(query); err != nil {
		if errRollback := tx.Rollback(); errRollback != nil {
			err = errors.Join(err, errRollback)
		}
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

// SetVersion records the current migration version.
func (d *ncrucesDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}

	query := "DELETE FROM " + versionTable
	if _, err := tx.Exec(query); err != nil {
		if errRollback := tx.Rollback(); errRollback != nil {
			err = errors.Join(err, errRollback)
		}
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}

	// Dirty nil versions are stored too, so a failed down migration of
	// the first migration does not leave the version table empty.
	// See golang-migrate/migrate#330.
	if version >= 0 || (version == database.NilVersion && dirty) {
		query := fmt.Sprintf(`INSERT INTO %s (version, dirty) VALUES (?, ?)`, versionTable)
		if _, err := tx.Exec(query, version, dirty); err != nil {
			if errRollback := tx.Rollback(); errRollback != nil {
				err = errors.Join(err, errRollback)
			}
			return &database.Error{OrigErr: err, Query: []byte(query)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

// Version reports the current migration version. An unreadable or empty
// version table reads as no version at all.
func (d *ncrucesDriver) Version() (version int, dirty bool, err error) {
	query := "SELECT version, dirty FROM " + versionTable + " LIMIT 1"
	if err := d.db.QueryRow(query).Scan(&version, &dirty); err != nil {
		return database.NilVersion, false, nil
	}
	return version, dirty, nil
}

// Drop removes every table in the database.
func (d *ncrucesDriver) Drop() (err error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'table';`
	rows, err := d.db.Query(query)
	if err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	defer func() {
		if errClose := rows.Close(); errClose != nil {
			err = errors.Join(err, errClose)
		}
	}()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name != "" {
			tables = append(tables, name)
		}
	}
	if err := rows.Err(); err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}

	for _, table := range tables {
		query := "DROP TABLE " + table
		if err := d.runInTx(query); err != nil {
			return &database.Error{OrigErr: err, Query: []byte(query)}
		}
	}
	if len(tables) > 0 {
		if _, err := d.db.Exec("VACUUM"); err != nil {
			return &database.Error{OrigErr: err, Query: []byte("VACUUM")}
		}
	}

	return nil
}
