package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var ledgerMigrations embed.FS

// ErrDirtySchema means an earlier ledger migration stopped halfway and the
// schema needs manual repair before the service can start.
var ErrDirtySchema = errors.New("ledger schema is dirty")

// migrateLedger brings the ledger schema at dbPath up to date and returns the
// schema version it ends on. The schema holds users and their setup state,
// transactions with their mirror sync status, receipts, recurring rules and
// category budgets.
//
// Migrations run on their own connection so the repository pool keeps its
// pragmas.
func migrateLedger(dbPath string) (uint, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open ledger for migration: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("ledger migration driver: %w", err)
	}

	src, err := iofs.New(ledgerMigrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load ledger migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("prepare ledger migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply ledger migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read ledger schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	}
	return version, nil
}
