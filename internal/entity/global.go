package entity

import (
	"time"

	"github.com/google/uuid"
)

// GlobalCompany is the platform-wide cache row for a company domain.
type GlobalCompany struct {
	ID                     uuid.UUID      `json:"id"`
	Domain                 string         `json:"domain"`
	Name                   string         `json:"name"`
	LinkedinURL            *string        `json:"linkedin_url,omitempty"`
	Industry               *string        `json:"industry,omitempty"`
	Size                   *string        `json:"size,omitempty"`
	Location               *string        `json:"location,omitempty"`
	Description            *string        `json:"description,omitempty"`
	LogoURL                *string        `json:"logo_url,omitempty"`
	EmployeesCount         int            `json:"employees_count"`
	EmployeesLastFetchedAt *time.Time     `json:"employees_last_fetched_at,omitempty"`
	EmployeesCountedAt     *time.Time     `json:"employees_counted_at,omitempty"`
	StaleAfterDays         *int           `json:"stale_after_days,omitempty"`
	EnrichmentSource       string         `json:"enrichment_source"`
	Metadata               map[string]any `json:"metadata"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// GlobalEmployee is a person shared across all organizations, keyed by provider identity.
type GlobalEmployee struct {
	ID                 uuid.UUID      `json:"id"`
	ApolloID           string         `json:"apollo_id"`
	CompanyDomain      string         `json:"company_domain"`
	CompanyName        string         `json:"company_name"`
	CompanyLinkedinURL *string        `json:"company_linkedin_url,omitempty"`
	FirstName          string         `json:"first_name"`
	LastName           string         `json:"last_name"`
	Email              *string        `json:"email,omitempty"`
	Phone              *string        `json:"phone,omitempty"`
	JobTitle           *string        `json:"job_title,omitempty"`
	LinkedinURL        *string        `json:"linkedin_url,omitempty"`
	Location           *string        `json:"location,omitempty"`
	Seniority          *string        `json:"seniority,omitempty"`
	Department         *string        `json:"department,omitempty"`
	Metadata           map[string]any `json:"metadata"`
	FetchedAt          time.Time      `json:"fetched_at"`
}

// Departments returns the raw department tags captured from the provider.
func (e GlobalEmployee) Departments() []string {
	raw, ok := e.Metadata["departments"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
