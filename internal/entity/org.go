package entity

import (
	"time"

	"github.com/google/uuid"
)

// OrgCompany is a company tracked by a single organization.
type OrgCompany struct {
	ID          uuid.UUID  `json:"id"`
	OrgID       uuid.UUID  `json:"org_id"`
	ICPID       *uuid.UUID `json:"icp_id,omitempty"`
	Name        string     `json:"name"`
	Domain      *string    `json:"domain,omitempty"`
	LinkedinURL *string    `json:"linkedin_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// OrgEmployee is an organization's private copy of a cached person.
type OrgEmployee struct {
	ID               uuid.UUID      `json:"id"`
	OrgID            uuid.UUID      `json:"org_id"`
	CompanyID        uuid.UUID      `json:"company_id"`
	GlobalEmployeeID *uuid.UUID     `json:"global_employee_id,omitempty"`
	FirstName        string         `json:"first_name"`
	LastName         string         `json:"last_name"`
	Email            *string        `json:"email,omitempty"`
	Phone            *string        `json:"phone,omitempty"`
	JobTitle         *string        `json:"job_title,omitempty"`
	LinkedinURL      *string        `json:"linkedin_url,omitempty"`
	Location         *string        `json:"location,omitempty"`
	Seniority        *string        `json:"seniority,omitempty"`
	Department       *string        `json:"department,omitempty"`
	IsShortlisted    bool           `json:"is_shortlisted"`
	Metadata         map[string]any `json:"metadata"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Lead is an org employee promoted into the outreach pipeline.
type Lead struct {
	ID            uuid.UUID `json:"id"`
	OrgID         uuid.UUID `json:"org_id"`
	OrgEmployeeID uuid.UUID `json:"org_employee_id"`
	CompanyID     uuid.UUID `json:"company_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// ICP is an organization's ideal customer profile grouping companies.
type ICP struct {
	ID                uuid.UUID          `json:"id"`
	OrgID             uuid.UUID          `json:"org_id"`
	Name              string             `json:"name"`
	EnrichmentFilters *EnrichmentFilters `json:"enrichment_filters,omitempty"`
}
