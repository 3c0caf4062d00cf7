package edorg

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
)

// educationOrganizationsQuery resolves one effective parent per organization:
// School -> LEA, LEA -> parent LEA | ESC | SEA, ESC -> SEA.
const educationOrganizationsQuery = `SELECT edorg.educationorganizationid, edorg.nameofinstitution, edorg.shortnameofinstitution, edorg.discriminator, edorg.id, COALESCE(scl.localeducationagencyid, lea.parentlocaleducationagencyid, lea.educationservicecenterid, lea.stateeducationagencyid, esc.stateeducationagencyid) AS parentid FROM edfi.educationorganization edorg LEFT JOIN edfi.school scl ON edorg.educationorganizationid = scl.schoolid LEFT JOIN edfi.localeducationagency lea ON edorg.educationorganizationid = lea.localeducationagencyid LEFT JOIN edfi.educationservicecenter esc ON edorg.educationorganizationid = esc.educationservicecenterid WHERE edorg.discriminator in ('edfi.StateEducationAgency', 'edfi.EducationServiceCenter', 'edfi.LocalEducationAgency', 'edfi.School');`

// remotePool keeps remote ODS connections short lived; one query runs per refresh.
var remotePool = db.PoolOptions{MaxOpenConns: 1, MaxIdleConns: 1}

// Source reads the education organizations of one remote ODS database.
type Source interface {
	Fetch(ctx context.Context, engine db.Engine, connStr string) ([]Result, error)
}

// SQLSource queries remote ODS databases directly.
type SQLSource struct {
	open db.OpenFunc
}

var _ Source = (*SQLSource)(nil)

// NewSQLSource creates a Source opening connections with open, or db.Open when nil.
func NewSQLSource(open db.OpenFunc) *SQLSource {
	if open == nil {
		open = db.Open
	}
	return &SQLSource{open: open}
}

// Fetch runs the organization query against connStr. Rows that fail to parse
// are logged and skipped; a failure of the query or the row stream fails the
// whole fetch so that a truncated result never drives deletes.
func (s *SQLSource) Fetch(ctx context.Context, engine db.Engine, connStr string) ([]Result, error) {
	h, err := s.open(ctx, engine, connStr, remotePool)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ods database: %w", err)
	}
	defer func() {
		if err := h.Close(); err != nil {
			slog.Warn("Failed to close ods database connection", "error", err)
		}
	}()

	rows, err := h.DB.QueryContext(ctx, educationOrganizationsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query education organizations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []Result
	for rows.Next() {
		var raw rawRow
		if err := rows.Scan(
			&raw.educationOrganizationID,
			&raw.nameOfInstitution,
			&raw.shortNameOfInstitution,
			&raw.discriminator,
			&raw.id,
			&raw.parentID,
		); err != nil {
			slog.Error("Skipping unreadable education organization row", "error", err)
			continue
		}

		r, err := raw.parse(h.Dialect)
		if err != nil {
			slog.Error("Skipping invalid education organization row", "error", err)
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read education organizations: %w", err)
	}
	return results, nil
}

type rawRow struct {
	educationOrganizationID sql.NullString
	nameOfInstitution       sql.NullString
	shortNameOfInstitution  sql.NullString
	discriminator           sql.NullString
	id                      any
	parentID                sql.NullString
}

func (r rawRow) parse(d db.Dialect) (Result, error) {
	edorgID, err := parseID("educationorganizationid", r.educationOrganizationID)
	if err != nil {
		return Result{}, err
	}
	if !r.nameOfInstitution.Valid {
		return Result{}, fmt.Errorf("education organization %d: nameofinstitution is NULL", edorgID)
	}
	if !r.discriminator.Valid {
		return Result{}, fmt.Errorf("education organization %d: discriminator is NULL", edorgID)
	}
	sourceID, err := d.ParseUUID(r.id)
	if err != nil {
		return Result{}, fmt.Errorf("education organization %d: %w", edorgID, err)
	}

	res := Result{
		EducationOrganizationID: edorgID,
		NameOfInstitution:       r.nameOfInstitution.String,
		Discriminator:           r.discriminator.String,
		SourceID:                sourceID,
	}
	if r.shortNameOfInstitution.Valid {
		short := r.shortNameOfInstitution.String
		res.ShortNameOfInstitution = &short
	}
	if r.parentID.Valid {
		parent, err := parseID("parentid", r.parentID)
		if err != nil {
			return Result{}, fmt.Errorf("education organization %d: %w", edorgID, err)
		}
		res.ParentID = &parent
	}
	return res, nil
}

func parseID(column string, v sql.NullString) (int64, error) {
	if !v.Valid {
		return 0, fmt.Errorf("invalid %s value: NULL", column)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(v.String), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %q", column, v.String)
	}
	return id, nil
}
