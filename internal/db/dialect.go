package db

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"
)

// Dialect hides the identifier and placeholder differences between engines.
// Identifiers are written in their SQL Server (Pascal case) form; the
// PostgreSQL dialect folds them to lower case to match its naming convention.
type Dialect interface {
	Engine() Engine
	// Builder returns a squirrel builder using the engine's placeholder format.
	Builder() sq.StatementBuilderType
	// Table qualifies a table name with its schema.
	Table(schema, name string) string
	// Column quotes a column identifier.
	Column(name string) string
	// ParseUUID decodes a uniqueidentifier/uuid value read through database/sql.
	ParseUUID(src any) (uuid.UUID, error)
}

// SelectColumns renders columns aliased to their lower-case name so a single
// set of db tags maps rows from either engine.
func SelectColumns(d Dialect, names ...string) []string {
	cols := make([]string, 0, len(names))
	for _, n := range names {
		cols = append(cols, fmt.Sprintf("%s AS %s", d.Column(n), strings.ToLower(n)))
	}
	return cols
}

type sqlServerDialect struct{}

func (sqlServerDialect) Engine() Engine { return EngineSQLServer }

func (sqlServerDialect) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.AtP)
}

func (d sqlServerDialect) Table(schema, name string) string {
	return d.Column(schema) + "." + d.Column(name)
}

func (sqlServerDialect) Column(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// ParseUUID handles the mixed-endian byte layout SQL Server uses for
// uniqueidentifier columns.
func (sqlServerDialect) ParseUUID(src any) (uuid.UUID, error) {
	if s, ok := src.(string); ok {
		return uuid.Parse(s)
	}
	var u mssql.UniqueIdentifier
	if err := u.Scan(src); err != nil {
		return uuid.Nil, fmt.Errorf("invalid uniqueidentifier: %w", err)
	}
	return uuid.UUID(u), nil
}

type postgresDialect struct{}

func (postgresDialect) Engine() Engine { return EnginePostgreSQL }

func (postgresDialect) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func (d postgresDialect) Table(schema, name string) string {
	return d.Column(schema) + "." + d.Column(name)
}

func (postgresDialect) Column(name string) string {
	return strings.ToLower(name)
}

func (postgresDialect) ParseUUID(src any) (uuid.UUID, error) {
	switch v := src.(type) {
	case string:
		return uuid.Parse(v)
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case [16]byte:
		return uuid.UUID(v), nil
	case nil:
		return uuid.Nil, fmt.Errorf("invalid uuid: NULL")
	default:
		return uuid.Nil, fmt.Errorf("invalid uuid: unsupported type %T", src)
	}
}
