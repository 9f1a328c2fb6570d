package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/logger"
	"github.com/octobees/leads-enrichment/api/internal/repository"
)

const (
	defaultBulkDelay = 500 * time.Millisecond
	// persistTimeout bounds bookkeeping writes made after the work they record
	// has committed, when the request context may already be gone.
	persistTimeout = 10 * time.Second
)

// EnrichmentService runs company enrichment for organizations: cache lookup,
// credit check and materialization.
type EnrichmentService struct {
	orgs         OrgStore
	cache        *EmployeeCache
	ledger       *CreditLedger
	materializer *Materializer
	log          *logger.Logger
	bulkDelay    time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// EnrichmentOption configures optional EnrichmentService settings.
type EnrichmentOption func(*EnrichmentService)

// WithBulkDelay sets the pause between companies of a bulk run.
func WithBulkDelay(d time.Duration) EnrichmentOption {
	return func(s *EnrichmentService) {
		if d >= 0 {
			s.bulkDelay = d
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *logger.Logger) EnrichmentOption {
	return func(s *EnrichmentService) {
		if log != nil {
			s.log = log
		}
	}
}

// NewEnrichmentService wires the enrichment engine.
func NewEnrichmentService(orgs OrgStore, cache *EmployeeCache, ledger *CreditLedger, materializer *Materializer, opts ...EnrichmentOption) *EnrichmentService {
	s := &EnrichmentService{
		orgs:         orgs,
		cache:        cache,
		ledger:       ledger,
		materializer: materializer,
		log:          logger.NewNop(),
		bulkDelay:    defaultBulkDelay,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SingleEnrichRequest enriches one company of an organization.
type SingleEnrichRequest struct {
	OrgID            uuid.UUID
	MemberID         string
	CompanyID        uuid.UUID
	Filters          entity.EnrichmentFilters
	SaveFiltersToICP bool
	ForceRefresh     bool
	FetchAll         bool
}

// SingleEnrichResult summarizes a single-company enrichment.
type SingleEnrichResult struct {
	EmployeesFound   int  `json:"employees_found"`
	EmployeesCreated int  `json:"employees_created"`
	CreditsUsed      int  `json:"credits_used"`
	CacheHit         bool `json:"cache_hit"`
}

// EnrichCompany enriches one company. Unknown companies fail before any side
// effect, and a company whose new rows exceed the balance is refused whole.
func (s *EnrichmentService) EnrichCompany(ctx context.Context, req SingleEnrichRequest) (SingleEnrichResult, error) {
	company, err := s.orgs.GetCompany(ctx, req.OrgID, req.CompanyID)
	if err != nil {
		return SingleEnrichResult{}, mapStoreError(err)
	}

	filters := req.Filters.Normalized()
	outcome, err := s.enrichOne(ctx, req.OrgID, req.MemberID, *company, filters, req.FetchAll, req.ForceRefresh)
	if err != nil {
		return SingleEnrichResult{}, err
	}

	if outcome.EmployeesCreated > 0 {
		s.recordTransaction(ctx, &entity.EnrichmentTransaction{
			OrgID:         req.OrgID,
			MemberID:      req.MemberID,
			Type:          entity.TransactionSingleCompany,
			CreditsUsed:   outcome.CreditsUsed,
			CacheHit:      outcome.CacheHit,
			ProviderCalls: outcome.providerCalls,
			Filters:       filters,
			Metadata: map[string]any{
				"companyId":      company.ID.String(),
				"domain":         outcome.Domain,
				"employeesFound": outcome.EmployeesFound,
			},
		})
	}

	if req.SaveFiltersToICP && company.ICPID != nil && !filters.IsEmpty() {
		saveCtx, cancel := persistContext(ctx)
		defer cancel()
		if err := s.orgs.SaveICPFilters(saveCtx, req.OrgID, *company.ICPID, filters); err != nil {
			s.log.Warn("save icp filters failed", "org_id", req.OrgID, "icp_id", *company.ICPID, "error", err)
		}
	}

	return SingleEnrichResult{
		EmployeesFound:   outcome.EmployeesFound,
		EmployeesCreated: outcome.EmployeesCreated,
		CreditsUsed:      outcome.CreditsUsed,
		CacheHit:         outcome.CacheHit,
	}, nil
}

// Credits returns the organization's balance.
func (s *EnrichmentService) Credits(ctx context.Context, orgID uuid.UUID) (entity.CreditUsage, error) {
	return s.ledger.Usage(ctx, orgID)
}

// CompanyEnrichResult is the outcome of enriching one company.
type CompanyEnrichResult struct {
	CompanyID        uuid.UUID `json:"company_id"`
	CompanyName      string    `json:"company_name"`
	Domain           string    `json:"domain,omitempty"`
	EmployeesFound   int       `json:"employees_found"`
	EmployeesCreated int       `json:"employees_created"`
	CreditsUsed      int       `json:"credits_used"`
	CacheHit         bool      `json:"cache_hit"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`

	providerCalls int
}

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

func (s *EnrichmentService) enrichOne(ctx context.Context, orgID uuid.UUID, memberID string, company entity.OrgCompany, filters entity.EnrichmentFilters, fetchAll, force bool) (CompanyEnrichResult, error) {
	result := CompanyEnrichResult{CompanyID: company.ID, CompanyName: company.Name, Status: statusFailed}

	domain := companyDomain(company)
	if domain == "" {
		return result, ErrMissingDomain
	}
	result.Domain = domain

	var linkedin string
	if company.LinkedinURL != nil {
		linkedin = *company.LinkedinURL
	}
	lookup, err := s.cache.GetOrFetchEmployees(ctx, EmployeeLookup{
		Domain:             domain,
		CompanyName:        company.Name,
		CompanyLinkedinURL: linkedin,
		Filters:            filters,
		ForceRefresh:       force,
		FetchAll:           fetchAll,
	})
	if err != nil {
		return result, err
	}
	result.EmployeesFound = lookup.TotalAvailable
	result.CacheHit = lookup.CacheHit
	result.providerCalls = lookup.ProviderCalls

	plan, err := s.materializer.Plan(ctx, orgID, company.ID, lookup.Employees)
	if err != nil {
		return result, err
	}
	allowed, remaining, err := s.ledger.CheckAndReserve(ctx, orgID, memberID, len(plan.New))
	if err != nil {
		return result, err
	}
	if !allowed {
		return result, &InsufficientCreditsError{Requested: len(plan.New), Remaining: remaining}
	}

	materialized, err := s.materializer.Materialize(ctx, MaterializeInput{
		OrgID:     orgID,
		MemberID:  memberID,
		Company:   company,
		Employees: lookup.Employees,
		CacheHit:  lookup.CacheHit,
	})
	if err != nil {
		var creditsErr *InsufficientCreditsError
		if errors.As(err, &creditsErr) {
			if _, now, checkErr := s.ledger.CheckAndReserve(ctx, orgID, memberID, 0); checkErr == nil {
				creditsErr.Remaining = now
			}
		}
		return result, err
	}

	result.EmployeesCreated = materialized.Created
	result.CreditsUsed = materialized.Created
	result.Status = statusSuccess
	return result, nil
}

func (s *EnrichmentService) recordTransaction(ctx context.Context, txn *entity.EnrichmentTransaction) {
	ctx, cancel := persistContext(ctx)
	defer cancel()
	if err := s.ledger.Record(ctx, txn); err != nil {
		s.log.Error("record enrichment transaction failed", "org_id", txn.OrgID, "type", txn.Type, "error", err)
	}
}

func companyDomain(company entity.OrgCompany) string {
	if company.Domain == nil {
		return ""
	}
	return NormalizeDomain(*company.Domain)
}

func mapStoreError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("load organization data: %w", err)
}

// persistContext detaches from the caller's cancellation so that records of
// committed charges are still written.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
