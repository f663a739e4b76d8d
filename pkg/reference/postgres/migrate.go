package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/pkg/reference/postgres/migrations"
)

const migrationsTable = "blobsweep_schema_migrations"

// newMigrate opens a golang-migrate instance over the embedded migrations.
// The returned close func releases the database handle.
func newMigrate(ctx context.Context, connString string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, func() { _, _ = m.Close() }, nil
}

// RunMigrations applies all pending migrations. golang-migrate takes a
// PostgreSQL advisory lock, so concurrent callers are serialised.
func RunMigrations(ctx context.Context, cfg *Config) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("Running reference store migrations", "host", cfg.Host, "database", cfg.Database)

	m, closeFn, err := newMigrate(ctx, cfg.ConnectionString())
	if err != nil {
		return err
	}
	defer closeFn()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("No migrations to apply (database is up to date)")
	case err != nil:
		return fmt.Errorf("migration failed: %w", err)
	default:
		logger.Info("Migrations completed successfully")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	logger.Info("Current schema version", "version", version, "dirty", dirty)
	if dirty {
		logger.Warn("Database schema is in dirty state - manual intervention may be required")
	}

	return nil
}

// MigrationVersion reports the applied schema version. Zero means no
// migration has run yet.
func MigrationVersion(ctx context.Context, cfg *Config) (uint, bool, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return 0, false, fmt.Errorf("invalid configuration: %w", err)
	}

	m, closeFn, err := newMigrate(ctx, cfg.ConnectionString())
	if err != nil {
		return 0, false, err
	}
	defer closeFn()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, dirty, nil
}
