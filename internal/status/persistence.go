// Package status provides job run status tracking, scoped to a tenant's admin
// database when multi-tenancy is enabled.
package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=persistence.go Store

// ErrNotFound is returned when no status exists for a run id.
var ErrNotFound = errors.New("job status not found")

// Store persists job run statuses.
type Store interface {
	// SetStatus creates or overwrites the status of runID. An empty tenant
	// selects the default admin database; an empty errorMessage is stored as
	// NULL so a later Completed write clears an earlier error.
	SetStatus(ctx context.Context, runID string, s JobStatus, tenant, errorMessage string) error

	// GetStatus loads the status of runID or returns ErrNotFound.
	GetStatus(ctx context.Context, runID, tenant string) (*Record, error)
}

// HandleResolver yields the admin database for a tenant, or the default one.
// *tenants.Resolver satisfies it.
type HandleResolver interface {
	Resolve(ctx context.Context, tenantID string) (*db.Handle, error)
	Default(ctx context.Context) (*db.Handle, error)
}

type dbStore struct {
	handles      HandleResolver
	multiTenancy bool
}

// NewDBStore creates a Store backed by adminapi.JobStatuses.
func NewDBStore(handles HandleResolver, multiTenancy bool) Store {
	return &dbStore{
		handles:      handles,
		multiTenancy: multiTenancy,
	}
}

func (s *dbStore) handle(ctx context.Context, tenant string) (*db.Handle, error) {
	if s.multiTenancy && tenant != "" {
		return s.handles.Resolve(ctx, tenant)
	}
	return s.handles.Default(ctx)
}

func (s *dbStore) SetStatus(ctx context.Context, runID string, js JobStatus, tenant, errorMessage string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if !js.Valid() {
		return fmt.Errorf("invalid job status %q", js)
	}

	h, err := s.handle(ctx, tenant)
	if err != nil {
		return err
	}

	var msg sql.NullString
	if errorMessage != "" {
		msg = sql.NullString{String: errorMessage, Valid: true}
	}

	tx, err := h.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	updated, err := updateStatus(ctx, tx, h.Dialect, runID, js, msg)
	if err != nil {
		return err
	}
	if !updated {
		if err := insertStatus(ctx, tx, h.Dialect, runID, js, msg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job status: %w", err)
	}
	return nil
}

func updateStatus(
	ctx context.Context, tx *sqlx.Tx, d db.Dialect, runID string, js JobStatus, msg sql.NullString,
) (bool, error) {
	query, args, err := d.Builder().
		Update(d.Table("adminapi", "JobStatuses")).
		Set(d.Column("Status"), string(js)).
		Set(d.Column("ErrorMessage"), msg).
		Where(d.Column("JobId")+" = ?", runID).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update job status: %w", err)
	}
	return n > 0, nil
}

func insertStatus(
	ctx context.Context, tx *sqlx.Tx, d db.Dialect, runID string, js JobStatus, msg sql.NullString,
) error {
	query, args, err := d.Builder().
		Insert(d.Table("adminapi", "JobStatuses")).
		Columns(d.Column("JobId"), d.Column("Status"), d.Column("ErrorMessage")).
		Values(runID, string(js), msg).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert job status: %w", err)
	}
	return nil
}

func (s *dbStore) GetStatus(ctx context.Context, runID, tenant string) (*Record, error) {
	h, err := s.handle(ctx, tenant)
	if err != nil {
		return nil, err
	}

	d := h.Dialect
	query, args, err := d.Builder().
		Select(db.SelectColumns(d, "JobId", "Status", "ErrorMessage")...).
		From(d.Table("adminapi", "JobStatuses")).
		Where(d.Column("JobId")+" = ?", runID).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := h.DB.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to load job status: %w", err)
	}
	return &rec, nil
}
