// Package edorg keeps the local education organization cache in step with the
// remote ODS databases registered in an admin database.
package edorg

import (
	"time"

	"github.com/google/uuid"
)

// Discriminator values selected from the remote ODS.
const (
	DiscriminatorStateEducationAgency   = "edfi.StateEducationAgency"
	DiscriminatorEducationServiceCenter = "edfi.EducationServiceCenter"
	DiscriminatorLocalEducationAgency   = "edfi.LocalEducationAgency"
	DiscriminatorSchool                 = "edfi.School"
)

// EducationOrganization is a cached row of adminapi.EducationOrganizations.
// (InstanceID, EducationOrganizationID) is unique.
type EducationOrganization struct {
	ID                      int64     `db:"id" json:"id"`
	InstanceID              int       `db:"instanceid" json:"instanceId"`
	InstanceName            string    `db:"instancename" json:"instanceName"`
	EducationOrganizationID int64     `db:"educationorganizationid" json:"educationOrganizationId"`
	NameOfInstitution       string    `db:"nameofinstitution" json:"nameOfInstitution"`
	ShortNameOfInstitution  *string   `db:"shortnameofinstitution" json:"shortNameOfInstitution"`
	Discriminator           string    `db:"discriminator" json:"discriminator"`
	ParentID                *int64    `db:"parentid" json:"parentId"`
	LastModifiedDate        time.Time `db:"lastmodifieddate" json:"lastModifiedDate"`
	LastRefreshed           time.Time `db:"lastrefreshed" json:"lastRefreshed"`
}

// Result is one organization read from a remote ODS. It only lives for the
// duration of a refresh.
type Result struct {
	EducationOrganizationID int64
	NameOfInstitution       string
	ShortNameOfInstitution  *string
	Discriminator           string
	ParentID                *int64

	// SourceID is the remote row id, kept for log correlation only
	SourceID uuid.UUID
}
