package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseEngine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Engine
		wantErr bool
	}{
		{name: "sql server canonical", input: "SqlServer", want: EngineSQLServer},
		{name: "sql server lower case", input: "sqlserver", want: EngineSQLServer},
		{name: "postgres canonical", input: "PostgreSql", want: EnginePostgreSQL},
		{name: "postgres upper case", input: "POSTGRESQL", want: EnginePostgreSQL},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown", input: "MySql", wantErr: true},
		{name: "abbreviation", input: "postgres", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseEngine(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedEngine)
				assert.Equal(t, EngineUnknown, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestEngineProperties(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sqlserver", EngineSQLServer.DriverName())
	assert.Equal(t, "pgx", EnginePostgreSQL.DriverName())
	assert.Empty(t, EngineUnknown.DriverName())

	assert.Equal(t, "SqlServer", EngineSQLServer.String())
	assert.Equal(t, "PostgreSql", EnginePostgreSQL.String())

	assert.Nil(t, EngineUnknown.Dialect())
	assert.Equal(t, EngineSQLServer, EngineSQLServer.Dialect().Engine())
	assert.Equal(t, EnginePostgreSQL, EnginePostgreSQL.Dialect().Engine())
}

func TestEngineYAML(t *testing.T) {
	t.Parallel()

	var cfg struct {
		Engine Engine `yaml:"databaseEngine"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("databaseEngine: postgresql\n"), &cfg))
	assert.Equal(t, EnginePostgreSQL, cfg.Engine)

	err := yaml.Unmarshal([]byte("databaseEngine: Oracle\n"), &cfg)
	require.ErrorIs(t, err, ErrUnsupportedEngine)

	out, err := yaml.Marshal(struct {
		Engine Engine `yaml:"databaseEngine"`
	}{Engine: EngineSQLServer})
	require.NoError(t, err)
	assert.Equal(t, "databaseEngine: SqlServer\n", string(out))
}
