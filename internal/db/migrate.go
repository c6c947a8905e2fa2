package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// Migrate brings the schema up to date. When the schema is dirty or a
// migration fails, everything is dropped and the schema is rebuilt from
// scratch, losing all stored data.
func Migrate(databaseURL string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	version, err := migrateUp(databaseURL)
	if err == nil {
		logger.Info("schema ready", "version", version)
		return nil
	}
	logger.Warn("migration failed, rebuilding schema", "err", err)
	if err := dropAll(databaseURL); err != nil {
		return err
	}
	version, err = migrateUp(databaseURL)
	if err != nil {
		return fmt.Errorf("migrate after drop: %w", err)
	}
	logger.Info("schema rebuilt", "version", version)
	return nil
}

// migrateUp applies pending migrations and returns the resulting version.
func migrateUp(databaseURL string) (uint, error) {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = m.Close()
	}()

	_, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, errors.New("schema is dirty")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}
	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	return version, nil
}

func dropAll(databaseURL string) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = m.Close()
	}()
	if err := m.Drop(); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}
