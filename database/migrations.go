// Package database holds the admin API schema migrations for both engines.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	mdb "github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlserver"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
)

// MigrationsTable records applied versions, kept apart from other tools sharing the admin database.
const MigrationsTable = "adminapi_schema_migrations"

//go:embed migrations
var migrationsFS embed.FS

// migrationsDir returns the embedded directory for engine.
func migrationsDir(engine db.Engine) (string, error) {
	switch engine {
	case db.EnginePostgreSQL:
		return "migrations/postgres", nil
	case db.EngineSQLServer:
		return "migrations/sqlserver", nil
	default:
		return "", fmt.Errorf("%w: %s", db.ErrUnsupportedEngine, engine)
	}
}

func migrationsSource(engine db.Engine) (source.Driver, error) {
	dir, err := migrationsDir(engine)
	if err != nil {
		return nil, err
	}
	return iofs.New(migrationsFS, dir)
}

// NewMigrator returns a migrate instance over sqlDB. Closing it closes sqlDB.
func NewMigrator(sqlDB *sql.DB, engine db.Engine) (*migrate.Migrate, error) {
	src, err := migrationsSource(engine)
	if err != nil {
		return nil, err
	}

	var driver mdb.Driver
	switch engine {
	case db.EnginePostgreSQL:
		driver, err = pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{MigrationsTable: MigrationsTable})
	case db.EngineSQLServer:
		driver, err = sqlserver.WithInstance(sqlDB, &sqlserver.Config{MigrationsTable: MigrationsTable})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", src, engine.DriverName(), driver)
}

// Up applies every pending migration to the admin database at connStr.
func Up(ctx context.Context, engine db.Engine, connStr string) error {
	return run(ctx, engine, connStr, func(m *migrate.Migrate) error {
		return m.Up()
	})
}

// Down rolls back steps migrations, or all of them when steps <= 0.
func Down(ctx context.Context, engine db.Engine, connStr string, steps int) error {
	return run(ctx, engine, connStr, func(m *migrate.Migrate) error {
		if steps <= 0 {
			return m.Down()
		}
		return m.Steps(-steps)
	})
}

func run(ctx context.Context, engine db.Engine, connStr string, fn func(*migrate.Migrate) error) error {
	h, err := db.Open(ctx, engine, connStr, db.PoolOptions{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return err
	}

	m, err := NewMigrator(h.DB.DB, engine)
	if err != nil {
		_ = h.Close()
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("Failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	stop := context.AfterFunc(ctx, func() {
		m.GracefulStop <- true
	})
	defer stop()

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		slog.Info("Database has no applied migrations", "engine", engine.String())
	case err != nil:
		return fmt.Errorf("failed to read migration version: %w", err)
	default:
		slog.Info("Database migrated", "engine", engine.String(), "version", version, "dirty", dirty)
	}
	return nil
}
