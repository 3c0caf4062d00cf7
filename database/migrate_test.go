package database

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
)

func TestMigrationsDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		engine  db.Engine
		want    string
		wantErr bool
	}{
		{name: "postgres", engine: db.EnginePostgreSQL, want: "migrations/postgres"},
		{name: "sql server", engine: db.EngineSQLServer, want: "migrations/sqlserver"},
		{name: "unknown", engine: db.EngineUnknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := migrationsDir(tt.engine)
			if tt.wantErr {
				require.ErrorIs(t, err, db.ErrUnsupportedEngine)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMigrationsArePaired(t *testing.T) {
	t.Parallel()

	for _, dir := range []string{"migrations/postgres", "migrations/sqlserver"} {
		ups, err := fs.Glob(migrationsFS, dir+"/*.up.sql")
		require.NoError(t, err)
		downs, err := fs.Glob(migrationsFS, dir+"/*.down.sql")
		require.NoError(t, err)

		assert.NotEmpty(t, ups, dir)
		assert.Len(t, downs, len(ups), dir)
	}

	pg, err := fs.Glob(migrationsFS, "migrations/postgres/*.sql")
	require.NoError(t, err)
	ms, err := fs.Glob(migrationsFS, "migrations/sqlserver/*.sql")
	require.NoError(t, err)
	assert.Len(t, ms, len(pg), "engines must carry the same migrations")
}

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	t.Parallel()

	ctx := context.Background()
	connStr := StartPostgres(t)

	h, err := db.Open(ctx, db.EnginePostgreSQL, connStr, db.PoolOptions{MaxOpenConns: 1})
	require.NoError(t, err)

	m, err := NewMigrator(h.DB.DB, db.EnginePostgreSQL)
	require.NoError(t, err)
	defer m.Close()

	fnames, err := fs.Glob(migrationsFS, "migrations/postgres/*.up.sql")
	require.NoError(t, err)

	for i := 1; i <= len(fnames); i++ {
		assert.NoError(t, m.Steps(i))
		assert.NoError(t, m.Steps(-i))
		assert.NoError(t, m.Steps(i))
	}

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(len(fnames)), version)
	assert.False(t, dirty)
}

func TestUpIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	t.Parallel()

	ctx := context.Background()
	connStr := StartPostgres(t)

	require.NoError(t, Up(ctx, db.EnginePostgreSQL, connStr))
	require.NoError(t, Up(ctx, db.EnginePostgreSQL, connStr))

	require.NoError(t, Down(ctx, db.EnginePostgreSQL, connStr, 0))
	require.NoError(t, Up(ctx, db.EnginePostgreSQL, connStr))
}
