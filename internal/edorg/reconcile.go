package edorg

import (
	"time"

	"github.com/ed-fi-alliance/ods-admin-api/internal/odsinstances"
)

// ChangeSet is the set of writes that brings one instance's cache in line with its source.
type ChangeSet struct {
	Inserts []EducationOrganization
	Updates []EducationOrganization
	Deletes []int64
}

// Empty reports whether the change set has no writes.
func (c ChangeSet) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0 && len(c.Deletes) == 0
}

// Reconcile computes a full replace of the cached rows of inst by source.
// Rows present in both are updated in place, source-only rows are inserted
// and cache-only rows are deleted. Duplicate source ids keep the first row.
func Reconcile(
	inst odsinstances.OdsInstance, existing []EducationOrganization, source []Result, now time.Time,
) ChangeSet {
	byID := make(map[int64]EducationOrganization, len(existing))
	for _, e := range existing {
		byID[e.EducationOrganizationID] = e
	}

	var cs ChangeSet
	seen := make(map[int64]struct{}, len(source))
	for _, r := range source {
		if _, dup := seen[r.EducationOrganizationID]; dup {
			continue
		}
		seen[r.EducationOrganizationID] = struct{}{}

		if row, ok := byID[r.EducationOrganizationID]; ok {
			row.NameOfInstitution = r.NameOfInstitution
			row.ShortNameOfInstitution = r.ShortNameOfInstitution
			row.Discriminator = r.Discriminator
			row.ParentID = r.ParentID
			row.LastModifiedDate = now
			row.LastRefreshed = now
			cs.Updates = append(cs.Updates, row)
			continue
		}

		cs.Inserts = append(cs.Inserts, EducationOrganization{
			InstanceID:              inst.ID,
			InstanceName:            inst.Name,
			EducationOrganizationID: r.EducationOrganizationID,
			NameOfInstitution:       r.NameOfInstitution,
			ShortNameOfInstitution:  r.ShortNameOfInstitution,
			Discriminator:           r.Discriminator,
			ParentID:                r.ParentID,
			LastModifiedDate:        now,
			LastRefreshed:           now,
		})
	}

	for _, e := range existing {
		if _, ok := seen[e.EducationOrganizationID]; !ok {
			cs.Deletes = append(cs.Deletes, e.EducationOrganizationID)
		}
	}
	return cs
}
