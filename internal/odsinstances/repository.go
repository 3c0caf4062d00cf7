// Package odsinstances reads the ODS instance registry held in the admin database.
package odsinstances

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
)

// ErrNotFound is returned when no ODS instance has the requested id.
var ErrNotFound = errors.New("ods instance not found")

// OdsInstance is one registered ODS database. ConnectionString is encrypted.
type OdsInstance struct {
	ID               int     `db:"odsinstanceid"`
	Name             string  `db:"name"`
	InstanceType     *string `db:"instancetype"`
	ConnectionString string  `db:"connectionstring"`
}

// Repository reads ODS instances. It never writes.
type Repository interface {
	Get(ctx context.Context, id int) (*OdsInstance, error)
	List(ctx context.Context) ([]OdsInstance, error)
}

// SQLRepository reads dbo.OdsInstances through an engine-aware handle.
type SQLRepository struct {
	handle *db.Handle
}

var _ Repository = (*SQLRepository)(nil)

// NewRepository creates a repository over the given admin database.
func NewRepository(handle *db.Handle) *SQLRepository {
	return &SQLRepository{handle: handle}
}

func (r *SQLRepository) baseQuery() sq.SelectBuilder {
	d := r.handle.Dialect
	return d.Builder().
		Select(db.SelectColumns(d, "OdsInstanceId", "Name", "InstanceType", "ConnectionString")...).
		From(d.Table("dbo", "OdsInstances"))
}

// Get returns the instance with the given id or ErrNotFound.
func (r *SQLRepository) Get(ctx context.Context, id int) (*OdsInstance, error) {
	query, args, err := r.baseQuery().
		Where(r.handle.Dialect.Column("OdsInstanceId")+" = ?", id).
		ToSql()
	if err != nil {
		return nil, err
	}

	var inst OdsInstance
	if err := r.handle.DB.GetContext(ctx, &inst, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load ods instance %d: %w", id, err)
	}
	return &inst, nil
}

// List returns every registered instance ordered by id.
func (r *SQLRepository) List(ctx context.Context) ([]OdsInstance, error) {
	query, args, err := r.baseQuery().
		OrderBy(r.handle.Dialect.Column("OdsInstanceId")).
		ToSql()
	if err != nil {
		return nil, err
	}

	var out []OdsInstance
	if err := r.handle.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list ods instances: %w", err)
	}
	return out, nil
}
