package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/octobees/leads-enrichment/api/internal/entity"
)

const skipReasonNoDomain = "company has no domain"

// BulkRequest enriches either an explicit list of companies or every company of an ICP.
type BulkRequest struct {
	OrgID        uuid.UUID
	MemberID     string
	CompanyIDs   []uuid.UUID
	ICPID        *uuid.UUID
	Filters      entity.EnrichmentFilters
	FetchAll     bool
	ForceRefresh bool
	SaveFilters  bool
}

// SkippedCompany is a company left out of a batch before processing.
type SkippedCompany struct {
	CompanyID   uuid.UUID `json:"company_id"`
	CompanyName string    `json:"company_name"`
	Reason      string    `json:"reason"`
}

// BulkResult aggregates a batch. Failures are reported per company.
type BulkResult struct {
	CompaniesProcessed    int                   `json:"companies_processed"`
	CompaniesSucceeded    int                   `json:"companies_succeeded"`
	CompaniesFailed       int                   `json:"companies_failed"`
	TotalEmployeesFound   int                   `json:"total_employees_found"`
	TotalEmployeesCreated int                   `json:"total_employees_created"`
	TotalCreditsUsed      int                   `json:"total_credits_used"`
	CacheHits             int                   `json:"cache_hits"`
	ProviderCalls         int                   `json:"provider_calls"`
	Results               []CompanyEnrichResult `json:"results"`
	Skipped               []SkippedCompany      `json:"skipped"`

	errs *multierror.Error
}

// Err joins the per-company failures, or returns nil when every company succeeded.
func (r BulkResult) Err() error {
	return r.errs.ErrorOrNil()
}

// EnrichBulk processes companies one at a time in the given order. A failing
// company is recorded and the loop moves on; one ledger entry covers the batch.
func (s *EnrichmentService) EnrichBulk(ctx context.Context, req BulkRequest) (BulkResult, error) {
	companies, err := s.resolveCompanies(ctx, req.OrgID, req.CompanyIDs, req.ICPID)
	if err != nil {
		return BulkResult{}, err
	}
	filters := req.Filters.Normalized()
	eligible, skipped := partitionByDomain(companies)

	result := BulkResult{
		Results: make([]CompanyEnrichResult, 0, len(eligible)),
		Skipped: skipped,
	}
	log := s.log.With("org_id", req.OrgID, "filters", filters.Key())

	for i, company := range eligible {
		if i > 0 {
			if err := s.sleep(ctx, s.bulkDelay); err != nil {
				for _, rest := range eligible[i:] {
					result.add(CompanyEnrichResult{CompanyID: rest.ID, CompanyName: rest.Name, Status: statusFailed}, err)
				}
				break
			}
		}

		outcome, err := s.enrichOne(ctx, req.OrgID, req.MemberID, company, filters, req.FetchAll, req.ForceRefresh)
		if err != nil {
			log.Warn("company enrichment failed", "company_id", company.ID, "error", err)
		}
		result.add(outcome, err)
	}

	if result.CompaniesProcessed > 0 {
		s.recordTransaction(ctx, &entity.EnrichmentTransaction{
			OrgID:         req.OrgID,
			MemberID:      req.MemberID,
			Type:          entity.TransactionBulk,
			CreditsUsed:   result.TotalCreditsUsed,
			CacheHit:      result.ProviderCalls == 0 && result.CacheHits > 0,
			ProviderCalls: result.ProviderCalls,
			Filters:       filters,
			Metadata:      result.ledgerMetadata(req.ICPID),
		})
	}

	if req.SaveFilters && !filters.IsEmpty() {
		saveCtx, cancel := persistContext(ctx)
		defer cancel()
		if err := s.orgs.SaveOrgFilters(saveCtx, req.OrgID, filters); err != nil {
			log.Warn("save org filters failed", "error", err)
		}
		if req.ICPID != nil {
			if err := s.orgs.SaveICPFilters(saveCtx, req.OrgID, *req.ICPID, filters); err != nil {
				log.Warn("save icp filters failed", "icp_id", *req.ICPID, "error", err)
			}
		}
	}

	if err := result.Err(); err != nil {
		log.Info("bulk enrichment finished with failures", "failed", result.CompaniesFailed, "succeeded", result.CompaniesSucceeded, "errors", err.Error())
	} else {
		log.Info("bulk enrichment finished", "succeeded", result.CompaniesSucceeded, "credits_used", result.TotalCreditsUsed)
	}
	return result, nil
}

func (r *BulkResult) add(outcome CompanyEnrichResult, err error) {
	r.CompaniesProcessed++
	r.ProviderCalls += outcome.providerCalls
	if err != nil {
		outcome.Status = statusFailed
		outcome.Error = err.Error()
		outcome.EmployeesCreated = 0
		outcome.CreditsUsed = 0
		r.CompaniesFailed++
		r.errs = multierror.Append(r.errs, fmt.Errorf("company %s: %w", outcome.CompanyID, err))
		r.Results = append(r.Results, outcome)
		return
	}
	r.CompaniesSucceeded++
	r.TotalEmployeesFound += outcome.EmployeesFound
	r.TotalEmployeesCreated += outcome.EmployeesCreated
	r.TotalCreditsUsed += outcome.CreditsUsed
	if outcome.CacheHit {
		r.CacheHits++
	}
	r.Results = append(r.Results, outcome)
}

func (r BulkResult) ledgerMetadata(icpID *uuid.UUID) map[string]any {
	metadata := map[string]any{
		"companiesProcessed": r.CompaniesProcessed,
		"companiesSucceeded": r.CompaniesSucceeded,
		"companiesFailed":    r.CompaniesFailed,
		"companiesSkipped":   len(r.Skipped),
		"employeesFound":     r.TotalEmployeesFound,
		"employeesCreated":   r.TotalEmployeesCreated,
		"cacheHits":          r.CacheHits,
		"providerFetches":    r.ProviderCalls,
	}
	if icpID != nil {
		metadata["icpId"] = icpID.String()
	}
	return metadata
}

// resolveCompanies loads the batch in request order. An unknown id fails the
// whole request.
func (s *EnrichmentService) resolveCompanies(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID, icpID *uuid.UUID) ([]entity.OrgCompany, error) {
	if icpID != nil {
		companies, err := s.orgs.ListICPCompanies(ctx, orgID, *icpID)
		if err != nil {
			return nil, mapStoreError(err)
		}
		return companies, nil
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: company_ids or icp_id is required", ErrInvalidInput)
	}

	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	found, err := s.orgs.ListCompanies(ctx, orgID, unique)
	if err != nil {
		return nil, mapStoreError(err)
	}
	byID := make(map[uuid.UUID]entity.OrgCompany, len(found))
	for _, company := range found {
		byID[company.ID] = company
	}

	ordered := make([]entity.OrgCompany, 0, len(unique))
	for _, id := range unique {
		company, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: company %s", ErrNotFound, id)
		}
		ordered = append(ordered, company)
	}
	return ordered, nil
}

func partitionByDomain(companies []entity.OrgCompany) ([]entity.OrgCompany, []SkippedCompany) {
	eligible := make([]entity.OrgCompany, 0, len(companies))
	skipped := make([]SkippedCompany, 0)
	for _, company := range companies {
		if companyDomain(company) == "" {
			skipped = append(skipped, SkippedCompany{
				CompanyID:   company.ID,
				CompanyName: company.Name,
				Reason:      skipReasonNoDomain,
			})
			continue
		}
		eligible = append(eligible, company)
	}
	return eligible, skipped
}
