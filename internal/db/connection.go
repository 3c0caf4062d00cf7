// Package db contains the engine abstraction and connection handling shared by
// the administrative database and the remote ODS databases.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Needs to be imported for Postgres driver
	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb" // Needs to be imported for SQL Server driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// PoolOptions configures the connection pool of a Handle.
// Zero values fall back to defaults.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Handle is an engine-aware database handle.
type Handle struct {
	DB      *sqlx.DB
	Dialect Dialect
}

// NewHandle wraps an already opened *sql.DB.
func NewHandle(sqlDB *sql.DB, engine Engine) (*Handle, error) {
	if !engine.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEngine, engine)
	}
	return &Handle{
		DB:      sqlx.NewDb(sqlDB, engine.DriverName()),
		Dialect: engine.Dialect(),
	}, nil
}

// OpenFunc opens a database handle. Open satisfies it.
type OpenFunc func(ctx context.Context, engine Engine, connStr string, opts PoolOptions) (*Handle, error)

var _ OpenFunc = Open

// Open opens and pings a connection pool for the given engine.
func Open(ctx context.Context, engine Engine, connStr string, opts PoolOptions) (*Handle, error) {
	if !engine.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEngine, engine)
	}
	if connStr == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	dsn, err := NormalizeConnectionString(engine, connStr)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(engine.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	maxOpenConns := opts.MaxOpenConns
	if maxOpenConns == 0 {
		maxOpenConns = defaultMaxOpenConns
	}
	maxIdleConns := opts.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = defaultMaxIdleConns
	}
	connMaxLifetime := opts.ConnMaxLifetime
	if connMaxLifetime == 0 {
		connMaxLifetime = defaultConnMaxLifetime
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			slog.Error("Failed to close database connection after ping failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewHandle(sqlDB, engine)
}

// Close closes the underlying pool.
func (h *Handle) Close() error {
	if h == nil || h.DB == nil {
		return nil
	}
	return h.DB.Close()
}

// Ping verifies the database connection is still alive
func (h *Handle) Ping(ctx context.Context) error {
	if h == nil || h.DB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return h.DB.PingContext(ctx)
}
