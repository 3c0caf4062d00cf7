package edorg

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

const (
	// insertBatchSize keeps multi-row inserts under the SQL Server limit of 2100 parameters
	insertBatchSize = 200

	deleteBatchSize = 1000
)

var cacheColumns = []string{
	"Id",
	"InstanceId",
	"InstanceName",
	"EducationOrganizationId",
	"NameOfInstitution",
	"ShortNameOfInstitution",
	"Discriminator",
	"ParentId",
	"LastModifiedDate",
	"LastRefreshed",
}

// Store reads and writes the education organization cache of one admin database.
type Store interface {
	// ListByInstance returns the cached rows of one instance.
	ListByInstance(ctx context.Context, instanceID int) ([]EducationOrganization, error)

	// List returns cached rows ordered by instance then organization id,
	// restricted to one instance when instanceID is set.
	List(ctx context.Context, instanceID *int) ([]EducationOrganization, error)

	// Apply writes cs for one instance in a single transaction.
	Apply(ctx context.Context, instanceID int, cs ChangeSet) error
}

// SQLStore implements Store over adminapi.EducationOrganizations.
type SQLStore struct {
	handle *db.Handle
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a Store over the given admin database.
func NewSQLStore(handle *db.Handle) Store {
	return &SQLStore{handle: handle}
}

func (s *SQLStore) table() string {
	return s.handle.Dialect.Table("adminapi", "EducationOrganizations")
}

func (s *SQLStore) col(name string) string {
	return s.handle.Dialect.Column(name)
}

func (s *SQLStore) selectQuery() sq.SelectBuilder {
	d := s.handle.Dialect
	return d.Builder().
		Select(db.SelectColumns(d, cacheColumns...)...).
		From(s.table())
}

func (s *SQLStore) ListByInstance(ctx context.Context, instanceID int) ([]EducationOrganization, error) {
	query, args, err := s.selectQuery().
		Where(s.col("InstanceId")+" = ?", instanceID).
		ToSql()
	if err != nil {
		return nil, err
	}

	var out []EducationOrganization
	if err := s.handle.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load cached education organizations for instance %d: %w", instanceID, err)
	}
	return out, nil
}

func (s *SQLStore) List(ctx context.Context, instanceID *int) ([]EducationOrganization, error) {
	qb := s.selectQuery()
	if instanceID != nil {
		qb = qb.Where(s.col("InstanceId")+" = ?", *instanceID)
	}
	query, args, err := qb.
		OrderBy(s.col("InstanceId"), s.col("EducationOrganizationId")).
		ToSql()
	if err != nil {
		return nil, err
	}

	out := []EducationOrganization{}
	if err := s.handle.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list education organizations: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Apply(ctx context.Context, instanceID int, cs ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	tx, err := s.handle.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.insert(ctx, tx, cs.Inserts); err != nil {
		return err
	}
	if err := s.update(ctx, tx, instanceID, cs.Updates); err != nil {
		return err
	}
	if err := s.delete(ctx, tx, instanceID, cs.Deletes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit education organizations for instance %d: %w", instanceID, err)
	}
	return nil
}

func (s *SQLStore) insert(ctx context.Context, tx *sqlx.Tx, rows []EducationOrganization) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))

		qb := s.handle.Dialect.Builder().
			Insert(s.table()).
			Columns(
				s.col("InstanceId"),
				s.col("InstanceName"),
				s.col("EducationOrganizationId"),
				s.col("NameOfInstitution"),
				s.col("ShortNameOfInstitution"),
				s.col("Discriminator"),
				s.col("ParentId"),
				s.col("LastModifiedDate"),
				s.col("LastRefreshed"),
			)
		for _, r := range rows[start:end] {
			qb = qb.Values(
				r.InstanceID,
				r.InstanceName,
				r.EducationOrganizationID,
				r.NameOfInstitution,
				r.ShortNameOfInstitution,
				r.Discriminator,
				r.ParentID,
				r.LastModifiedDate,
				r.LastRefreshed,
			)
		}

		query, args, err := qb.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert education organizations: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) update(ctx context.Context, tx *sqlx.Tx, instanceID int, rows []EducationOrganization) error {
	for _, r := range rows {
		query, args, err := s.handle.Dialect.Builder().
			Update(s.table()).
			Set(s.col("NameOfInstitution"), r.NameOfInstitution).
			Set(s.col("ShortNameOfInstitution"), r.ShortNameOfInstitution).
			Set(s.col("Discriminator"), r.Discriminator).
			Set(s.col("ParentId"), r.ParentID).
			Set(s.col("LastModifiedDate"), r.LastModifiedDate).
			Set(s.col("LastRefreshed"), r.LastRefreshed).
			Where(s.col("InstanceId")+" = ?", instanceID).
			Where(s.col("EducationOrganizationId")+" = ?", r.EducationOrganizationID).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update education organization %d: %w", r.EducationOrganizationID, err)
		}
	}
	return nil
}

func (s *SQLStore) delete(ctx context.Context, tx *sqlx.Tx, instanceID int, ids []int64) error {
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))

		query, args, err := s.handle.Dialect.Builder().
			Delete(s.table()).
			Where(s.col("InstanceId")+" = ?", instanceID).
			Where(sq.Eq{s.col("EducationOrganizationId"): ids[start:end]}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete education organizations: %w", err)
		}
	}
	return nil
}
