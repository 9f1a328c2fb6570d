package dto

import "github.com/octobees/leads-enrichment/api/internal/entity"

// EnrichCompanyRequest is the body of POST /enrich/companies/:id.
type EnrichCompanyRequest struct {
	Filters          entity.EnrichmentFilters `json:"filters"`
	SaveFiltersToICP bool                     `json:"save_filters_to_icp"`
	ForceRefresh     bool                     `json:"force_refresh"`
	FetchAll         bool                     `json:"fetch_all"`
}

// BulkEnrichRequest is the body of POST /enrich/bulk. Either CompanyIDs or ICPID scopes the batch.
type BulkEnrichRequest struct {
	CompanyIDs   []string                 `json:"company_ids"`
	ICPID        string                   `json:"icp_id,omitempty"`
	Filters      entity.EnrichmentFilters `json:"filters"`
	SaveFilters  bool                     `json:"save_filters"`
	ForceRefresh bool                     `json:"force_refresh"`
	FetchAll     bool                     `json:"fetch_all"`
}

// PreviewRequest is the body of the preview endpoints. Scope fields are
// ignored by the single-company preview.
type PreviewRequest struct {
	CompanyIDs   []string                 `json:"company_ids,omitempty"`
	ICPID        string                   `json:"icp_id,omitempty"`
	Filters      entity.EnrichmentFilters `json:"filters"`
	ForceRefresh bool                     `json:"force_refresh"`
	FetchAll     bool                     `json:"fetch_all"`
}

// CreditsResponse reports an organization's balance.
type CreditsResponse struct {
	CreditsUsed      int `json:"credits_used"`
	CreditsLimit     int `json:"credits_limit"`
	CreditsRemaining int `json:"credits_remaining"`
}

// InsufficientCreditsResponse details a refused enrichment.
type InsufficientCreditsResponse struct {
	Requested int `json:"requested"`
	Remaining int `json:"remaining"`
	Shortfall int `json:"shortfall"`
}
