package db

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedEngine is returned when a database engine selector is neither
// SqlServer nor PostgreSql.
var ErrUnsupportedEngine = errors.New("unsupported database engine")

// Engine identifies the relational engine behind a connection.
type Engine int

const (
	// EngineUnknown is the zero value and is never valid for opening connections.
	EngineUnknown Engine = iota
	// EngineSQLServer is Microsoft SQL Server.
	EngineSQLServer
	// EnginePostgreSQL is PostgreSQL.
	EnginePostgreSQL
)

// Configuration spellings of the supported engines.
const (
	SQLServerName  = "SqlServer"
	PostgreSQLName = "PostgreSql"
)

// ParseEngine resolves an engine selector, ignoring case.
func ParseEngine(s string) (Engine, error) {
	switch {
	case strings.EqualFold(s, SQLServerName):
		return EngineSQLServer, nil
	case strings.EqualFold(s, PostgreSQLName):
		return EnginePostgreSQL, nil
	case s == "":
		return EngineUnknown, fmt.Errorf("%w: database engine is not set", ErrUnsupportedEngine)
	default:
		return EngineUnknown, fmt.Errorf("%w: %q", ErrUnsupportedEngine, s)
	}
}

// Valid reports whether e names a supported engine.
func (e Engine) Valid() bool {
	return e == EngineSQLServer || e == EnginePostgreSQL
}

// String returns the configuration spelling of the engine.
func (e Engine) String() string {
	switch e {
	case EngineSQLServer:
		return SQLServerName
	case EnginePostgreSQL:
		return PostgreSQLName
	default:
		return "Unknown"
	}
}

// DriverName returns the database/sql driver registered for the engine.
func (e Engine) DriverName() string {
	switch e {
	case EngineSQLServer:
		return "sqlserver"
	case EnginePostgreSQL:
		return "pgx"
	default:
		return ""
	}
}

// Dialect returns the SQL dialect for the engine, or nil for an unsupported engine.
func (e Engine) Dialect() Dialect {
	switch e {
	case EngineSQLServer:
		return sqlServerDialect{}
	case EnginePostgreSQL:
		return postgresDialect{}
	default:
		return nil
	}
}

// UnmarshalYAML resolves the engine while the configuration is decoded so the
// selector string is only compared once per process.
func (e *Engine) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseEngine(raw)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// MarshalYAML writes the configuration spelling.
func (e Engine) MarshalYAML() (any, error) {
	if !e.Valid() {
		return "", nil
	}
	return e.String(), nil
}
