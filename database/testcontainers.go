package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

var (
	dbName = "EdFi_Admin"
	dbUser = "testuser"
	dbPass = "testpass"
)

// odsInstancesDDL creates the instance registry owned by the wider admin
// database. The migrations never touch it.
const odsInstancesDDL = `
CREATE SCHEMA IF NOT EXISTS dbo;
CREATE TABLE IF NOT EXISTS dbo.odsinstances (
    odsinstanceid INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    instancetype VARCHAR(100) NULL,
    connectionstring TEXT NOT NULL
);`

// StartPostgres runs a bare Postgres container and returns its connection string.
func StartPostgres(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	tc.CleanupContainer(t, container)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

// SetupTestDB starts a Postgres admin database with the schema migrated and
// the OdsInstances registry created. The handle is closed on test cleanup.
func SetupTestDB(t *testing.T) (*db.Handle, string) {
	t.Helper()

	ctx := context.Background()
	connStr := StartPostgres(t)

	require.NoError(t, Up(ctx, db.EnginePostgreSQL, connStr))

	h, err := db.Open(ctx, db.EnginePostgreSQL, connStr, db.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = h.Close()
	})

	_, err = h.DB.ExecContext(ctx, odsInstancesDDL)
	require.NoError(t, err)

	return h, connStr
}
