package service

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/octobees/leads-enrichment/api/internal/entity"
)

// PreviewRequest estimates a single company (CompanyIDs of one) or a filtered batch.
type PreviewRequest struct {
	OrgID        uuid.UUID
	MemberID     string
	CompanyIDs   []uuid.UUID
	ICPID        *uuid.UUID
	Filters      entity.EnrichmentFilters
	FetchAll     bool
	ForceRefresh bool
}

// CompanyPreview estimates the outcome of enriching one company.
type CompanyPreview struct {
	CompanyID        uuid.UUID `json:"company_id"`
	CompanyName      string    `json:"company_name"`
	Domain           string    `json:"domain,omitempty"`
	Matches          int       `json:"matches"`
	AlreadyInOrg     int       `json:"already_in_org"`
	NewRecords       int       `json:"new_records"`
	EstimatedCredits int       `json:"estimated_credits"`
	CacheHit         bool      `json:"cache_hit"`
	Error            string    `json:"error,omitempty"`
}

// PreviewResult is the read-only estimate for a scope.
type PreviewResult struct {
	Companies         []CompanyPreview `json:"companies"`
	Skipped           []SkippedCompany `json:"skipped"`
	TotalMatches      int              `json:"total_matches"`
	TotalAlreadyInOrg int              `json:"total_already_in_org"`
	TotalNewRecords   int              `json:"total_new_records"`
	EstimatedCredits  int              `json:"estimated_credits"`
	CreditsRemaining  int              `json:"credits_remaining"`
	Affordable        bool             `json:"affordable"`
}

// PreviewCompany estimates a single company. It may fill the global cache but
// never charges credits or writes organization rows.
func (s *EnrichmentService) PreviewCompany(ctx context.Context, req PreviewRequest, companyID uuid.UUID) (PreviewResult, error) {
	company, err := s.orgs.GetCompany(ctx, req.OrgID, companyID)
	if err != nil {
		return PreviewResult{}, mapStoreError(err)
	}

	preview, err := s.previewOne(ctx, req, *company)
	if err != nil {
		return PreviewResult{}, err
	}
	return s.summarize(ctx, req, []CompanyPreview{preview}, nil)
}

// PreviewBulk estimates a batch. Per-company failures are reported inline.
func (s *EnrichmentService) PreviewBulk(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	companies, err := s.resolveCompanies(ctx, req.OrgID, req.CompanyIDs, req.ICPID)
	if err != nil {
		return PreviewResult{}, err
	}
	eligible, skipped := partitionByDomain(companies)

	previews := make([]CompanyPreview, 0, len(eligible))
	for _, company := range eligible {
		preview, err := s.previewOne(ctx, req, company)
		if err != nil {
			s.log.Warn("company preview failed", "org_id", req.OrgID, "company_id", company.ID, "error", err)
			preview.Error = err.Error()
		}
		previews = append(previews, preview)
	}
	return s.summarize(ctx, req, previews, skipped)
}

func (s *EnrichmentService) previewOne(ctx context.Context, req PreviewRequest, company entity.OrgCompany) (CompanyPreview, error) {
	preview := CompanyPreview{CompanyID: company.ID, CompanyName: company.Name}

	domain := companyDomain(company)
	if domain == "" {
		return preview, ErrMissingDomain
	}
	preview.Domain = domain

	lookup, err := s.cache.GetOrFetchEmployees(ctx, EmployeeLookup{
		Domain:       domain,
		CompanyName:  company.Name,
		Filters:      req.Filters,
		ForceRefresh: req.ForceRefresh,
		FetchAll:     req.FetchAll,
	})
	if err != nil {
		return preview, err
	}
	plan, err := s.materializer.Plan(ctx, req.OrgID, company.ID, lookup.Employees)
	if err != nil {
		return preview, err
	}

	preview.Matches = lookup.TotalAvailable
	preview.AlreadyInOrg = plan.AlreadyInOrg
	preview.NewRecords = len(plan.New)
	preview.EstimatedCredits = len(plan.New)
	preview.CacheHit = lookup.CacheHit
	return preview, nil
}

func (s *EnrichmentService) summarize(ctx context.Context, req PreviewRequest, previews []CompanyPreview, skipped []SkippedCompany) (PreviewResult, error) {
	sortPreviews(previews)

	result := PreviewResult{Companies: previews, Skipped: skipped}
	if result.Skipped == nil {
		result.Skipped = []SkippedCompany{}
	}
	for _, p := range previews {
		result.TotalMatches += p.Matches
		result.TotalAlreadyInOrg += p.AlreadyInOrg
		result.TotalNewRecords += p.NewRecords
		result.EstimatedCredits += p.EstimatedCredits
	}

	affordable, remaining, err := s.ledger.CheckAndReserve(ctx, req.OrgID, req.MemberID, result.EstimatedCredits)
	if err != nil {
		return PreviewResult{}, err
	}
	result.CreditsRemaining = remaining
	result.Affordable = affordable
	return result, nil
}

// sortPreviews puts companies with new records first, most new records first.
// Ties keep their input order.
func sortPreviews(previews []CompanyPreview) {
	sort.SliceStable(previews, func(i, j int) bool {
		return previews[i].NewRecords > previews[j].NewRecords
	})
}
