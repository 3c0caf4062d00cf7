// Package helpers provides the database and server fixtures of the admin API
// integration suite.
package helpers

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ed-fi-alliance/ods-admin-api/database"
	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
	"github.com/ed-fi-alliance/ods-admin-api/internal/encryption"
)

// odsSchemaDDL is the subset of the Ed-Fi ODS schema read by a refresh.
const odsSchemaDDL = `
CREATE SCHEMA IF NOT EXISTS edfi;
CREATE TABLE IF NOT EXISTS edfi.educationorganization (
    educationorganizationid INTEGER PRIMARY KEY,
    nameofinstitution VARCHAR(75) NOT NULL,
    shortnameofinstitution VARCHAR(75) NULL,
    discriminator VARCHAR(128) NULL,
    id UUID NOT NULL DEFAULT gen_random_uuid()
);
CREATE TABLE IF NOT EXISTS edfi.educationservicecenter (
    educationservicecenterid INTEGER PRIMARY KEY,
    stateeducationagencyid INTEGER NULL
);
CREATE TABLE IF NOT EXISTS edfi.localeducationagency (
    localeducationagencyid INTEGER PRIMARY KEY,
    parentlocaleducationagencyid INTEGER NULL,
    educationservicecenterid INTEGER NULL,
    stateeducationagencyid INTEGER NULL
);
CREATE TABLE IF NOT EXISTS edfi.school (
    schoolid INTEGER PRIMARY KEY,
    localeducationagencyid INTEGER NULL
);
CREATE SCHEMA IF NOT EXISTS dbo;
CREATE TABLE IF NOT EXISTS dbo.odsinstances (
    odsinstanceid INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    instancetype VARCHAR(100) NULL,
    connectionstring TEXT NOT NULL
);`

// Database is a PostgreSQL container serving as both the admin database and
// the ODS database of every registered instance.
type Database struct {
	ConnStr string
	Key     string

	container *postgres.PostgresContainer
	conn      *sqlx.DB
}

// StartDatabase runs the container, migrates the admin schema, creates the
// ODS tables and generates an encryption key.
func StartDatabase(ctx context.Context) (*Database, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("EdFi_Admin"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres: %w", err)
	}

	d := &Database{container: container}
	if err := d.init(ctx); err != nil {
		_ = d.Terminate(ctx)
		return nil, err
	}
	return d, nil
}

func (d *Database) init(ctx context.Context) error {
	var err error
	if d.ConnStr, err = d.container.ConnectionString(ctx, "sslmode=disable"); err != nil {
		return err
	}
	if err := database.Up(ctx, db.EnginePostgreSQL, d.ConnStr); err != nil {
		return err
	}
	if d.conn, err = sqlx.ConnectContext(ctx, db.EnginePostgreSQL.DriverName(), d.ConnStr); err != nil {
		return err
	}
	if _, err := d.conn.ExecContext(ctx, odsSchemaDDL); err != nil {
		return fmt.Errorf("failed to create ods schema: %w", err)
	}
	d.Key, err = encryption.GenerateKey()
	return err
}

// Terminate closes the connection and removes the container.
func (d *Database) Terminate(ctx context.Context) error {
	if d.conn != nil {
		_ = d.conn.Close()
	}
	return tc.TerminateContainer(d.container, tc.StopContext(ctx))
}

// Reset empties the cache, the job statuses, the ODS tables and the instance registry.
func (d *Database) Reset(ctx context.Context) error {
	_, err := d.conn.ExecContext(ctx, `
TRUNCATE adminapi.educationorganizations, adminapi.jobstatuses;
TRUNCATE edfi.educationorganization, edfi.educationservicecenter, edfi.localeducationagency, edfi.school;
TRUNCATE dbo.odsinstances RESTART IDENTITY;`)
	return err
}

// RegisterInstance stores an ODS instance whose encrypted connection string
// points back at this database and returns its id.
func (d *Database) RegisterInstance(ctx context.Context, name string) (int, error) {
	raw, err := encryption.DecodeKey(d.Key)
	if err != nil {
		return 0, err
	}
	encrypted, err := encryption.NewProvider().Encrypt(d.ConnStr, raw)
	if err != nil {
		return 0, err
	}

	var id int
	err = d.conn.GetContext(ctx, &id,
		`INSERT INTO dbo.odsinstances (name, connectionstring) VALUES ($1, $2) RETURNING odsinstanceid`,
		name, encrypted)
	return id, err
}

// RegisterBrokenInstance stores an instance whose connection string cannot be decrypted.
func (d *Database) RegisterBrokenInstance(ctx context.Context, name string) (int, error) {
	var id int
	err := d.conn.GetContext(ctx, &id,
		`INSERT INTO dbo.odsinstances (name, connectionstring) VALUES ($1, $2) RETURNING odsinstanceid`,
		name, "not-encrypted")
	return id, err
}

// AddStateAgency inserts a state education agency.
func (d *Database) AddStateAgency(ctx context.Context, id int64, name string) error {
	return d.addOrganization(ctx, id, name, "edfi.StateEducationAgency")
}

// AddLocalAgency inserts a local education agency under a state agency.
func (d *Database) AddLocalAgency(ctx context.Context, id int64, name string, stateID int64) error {
	if err := d.addOrganization(ctx, id, name, "edfi.LocalEducationAgency"); err != nil {
		return err
	}
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO edfi.localeducationagency (localeducationagencyid, stateeducationagencyid) VALUES ($1, $2)`,
		id, stateID)
	return err
}

// AddSchool inserts a school under a local education agency.
func (d *Database) AddSchool(ctx context.Context, id int64, name string, leaID int64) error {
	if err := d.addOrganization(ctx, id, name, "edfi.School"); err != nil {
		return err
	}
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO edfi.school (schoolid, localeducationagencyid) VALUES ($1, $2)`, id, leaID)
	return err
}

// RenameOrganization changes the name of an organization in the ODS.
func (d *Database) RenameOrganization(ctx context.Context, id int64, name string) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE edfi.educationorganization SET nameofinstitution = $1 WHERE educationorganizationid = $2`, name, id)
	return err
}

// RemoveSchool deletes a school from the ODS.
func (d *Database) RemoveSchool(ctx context.Context, id int64) error {
	if _, err := d.conn.ExecContext(ctx, `DELETE FROM edfi.school WHERE schoolid = $1`, id); err != nil {
		return err
	}
	_, err := d.conn.ExecContext(ctx,
		`DELETE FROM edfi.educationorganization WHERE educationorganizationid = $1`, id)
	return err
}

func (d *Database) addOrganization(ctx context.Context, id int64, name, discriminator string) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO edfi.educationorganization (educationorganizationid, nameofinstitution, discriminator)
		 VALUES ($1, $2, $3)`, id, name, discriminator)
	return err
}
