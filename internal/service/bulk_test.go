package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/provider"
)

func TestEnrichBulk_CreditGatingIsPerCompany(t *testing.T) {
	h := newHarness()
	big := h.store.addCompany(h.orgID, "Big", "big.com")
	small := h.store.addCompany(h.orgID, "Small", "small.com")
	h.provider.people["big.com"] = staff("big.com", 8)
	h.provider.people["small.com"] = staff("small.com", 3)
	h.store.setUsage(h.orgID, 25, 30)

	result, err := h.svc.EnrichBulk(context.Background(), BulkRequest{OrgID: h.orgID, CompanyIDs: []uuid.UUID{big.ID, small.ID}})
	require.NoError(t, err)

	require.Len(t, result.Results, 2)
	assert.Equal(t, statusFailed, result.Results[0].Status)
	assert.Contains(t, result.Results[0].Error, "insufficient credits")
	assert.Zero(t, result.Results[0].EmployeesCreated)
	assert.Zero(t, result.Results[0].CreditsUsed)
	assert.Equal(t, statusSuccess, result.Results[1].Status)
	assert.Equal(t, 3, result.Results[1].EmployeesCreated)

	assert.Equal(t, 2, result.CompaniesProcessed)
	assert.Equal(t, 1, result.CompaniesSucceeded)
	assert.Equal(t, 1, result.CompaniesFailed)
	assert.Equal(t, 3, result.TotalCreditsUsed)
	assert.Equal(t, 2, result.ProviderCalls)
	assert.ErrorIs(t, result.Err(), ErrInsufficientCredits)

	assert.Zero(t, h.store.orgRowCount(h.orgID, big.ID))
	assert.Equal(t, 3, h.store.orgRowCount(h.orgID, small.ID))
	assert.Equal(t, 28, h.store.usage[h.orgID].CreditsUsed)

	txns := h.store.transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, entity.TransactionBulk, txns[0].Type)
	assert.Equal(t, 3, txns[0].CreditsUsed)
	assert.Equal(t, 2, txns[0].ProviderCalls)
	assert.Equal(t, 1, txns[0].Metadata["companiesFailed"])
}

func TestEnrichBulk_ProviderFailureIsIsolated(t *testing.T) {
	h := newHarness()
	a := h.store.addCompany(h.orgID, "A", "a.com")
	b := h.store.addCompany(h.orgID, "B", "b.com")
	c := h.store.addCompany(h.orgID, "C", "c.com")
	h.provider.people["a.com"] = staff("a.com", 2)
	h.provider.errs["b.com"] = provider.ErrTransient
	h.provider.people["c.com"] = staff("c.com", 1)

	result, err := h.svc.EnrichBulk(context.Background(), BulkRequest{OrgID: h.orgID, CompanyIDs: []uuid.UUID{a.ID, b.ID, c.ID}})
	require.NoError(t, err)

	statuses := []string{result.Results[0].Status, result.Results[1].Status, result.Results[2].Status}
	assert.Equal(t, []string{statusSuccess, statusFailed, statusSuccess}, statuses)
	assert.Equal(t, b.ID, result.Results[1].CompanyID)
	assert.Equal(t, 3, result.TotalEmployeesCreated)
	assert.ErrorIs(t, result.Err(), ErrProviderFailure)
}

func TestEnrichBulk_SkipsCompaniesWithoutDomain(t *testing.T) {
	h := newHarness()
	stealth := h.store.addCompany(h.orgID, "Stealth", "")
	acme := h.store.addCompany(h.orgID, "Acme", "acme.com")
	h.provider.people["acme.com"] = staff("acme.com", 1)

	result, err := h.svc.EnrichBulk(context.Background(), BulkRequest{OrgID: h.orgID, CompanyIDs: []uuid.UUID{stealth.ID, acme.ID, acme.ID}})
	require.NoError(t, err)
	assert.Equal(t, []SkippedCompany{{CompanyID: stealth.ID, CompanyName: "Stealth", Reason: "company has no domain"}}, result.Skipped)
	assert.Equal(t, 1, result.CompaniesProcessed)
	assert.Equal(t, 1, result.CompaniesSucceeded)
	assert.NoError(t, result.Err())
}

func TestEnrichBulk_AllCachedRecordsCacheHit(t *testing.T) {
	h := newHarness()
	acme := h.store.addCompany(h.orgID, "Acme", "acme.com")
	h.store.seedCompany("acme.com", 1, h.now.Add(-time.Hour), true)
	h.store.seedEmployee("acme.com", "p-1", "Ada", "Lovelace", "CTO", "c_suite")

	result, err := h.svc.EnrichBulk(context.Background(), BulkRequest{OrgID: h.orgID, CompanyIDs: []uuid.UUID{acme.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CacheHits)
	assert.Zero(t, result.ProviderCalls)
	assert.True(t, h.store.transactions()[0].CacheHit)
}

func TestEnrichBulk_RequestErrors(t *testing.T) {
	h := newHarness()
	known := h.store.addCompany(h.orgID, "Acme", "acme.com")
	otherICP := uuid.New()
	h.store.icps[otherICP] = uuid.New()

	tests := map[string]struct {
		req  BulkRequest
		want error
	}{
		"no scope":        {req: BulkRequest{OrgID: h.orgID}, want: ErrInvalidInput},
		"unknown company": {req: BulkRequest{OrgID: h.orgID, CompanyIDs: []uuid.UUID{known.ID, uuid.New()}}, want: ErrNotFound},
		"unknown icp":     {req: BulkRequest{OrgID: h.orgID, ICPID: ptrUUID(uuid.New())}, want: ErrNotFound},
		"other org's icp": {req: BulkRequest{OrgID: h.orgID, ICPID: &otherICP}, want: ErrNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.EnrichBulk(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, h.provider.totalCalls())
	assert.Empty(t, h.store.transactions())
}

func TestEnrichBulk_ICPScopeSavesFilters(t *testing.T) {
	h := newHarness()
	icpID := uuid.New()
	h.store.icps[icpID] = h.orgID
	for _, domain := range []string{"a.com", "b.com"} {
		company := h.store.addCompany(h.orgID, domain, domain)
		company.ICPID = &icpID
		h.store.orgCompanies[company.ID] = company
		h.provider.people[domain] = staff(domain, 3)
	}
	h.store.addCompany(h.orgID, "Outside", "outside.com")

	filters := entity.EnrichmentFilters{Seniorities: []string{"C-Level"}}
	result, err := h.svc.EnrichBulk(context.Background(), BulkRequest{OrgID: h.orgID, ICPID: &icpID, Filters: filters, SaveFilters: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.CompaniesSucceeded)
	assert.Equal(t, 2, result.TotalEmployeesCreated)
	assert.Zero(t, h.provider.callCount("outside.com"))

	want := entity.EnrichmentFilters{Seniorities: []string{"c_suite"}}
	assert.Equal(t, want, h.store.orgFilters[h.orgID])
	assert.Equal(t, want, h.store.icpFilters[icpID])
	assert.Equal(t, icpID.String(), h.store.transactions()[0].Metadata["icpId"])
}

func TestEnrichBulk_CancelledContextFailsRemaining(t *testing.T) {
	h := newHarness()
	a := h.store.addCompany(h.orgID, "A", "a.com")
	b := h.store.addCompany(h.orgID, "B", "b.com")
	c := h.store.addCompany(h.orgID, "C", "c.com")
	h.provider.people["a.com"] = staff("a.com", 3)
	h.provider.people["b.com"] = staff("b.com", 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.svc.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	filters := entity.EnrichmentFilters{Seniorities: []string{"c_suite", "senior"}}
	result, err := h.svc.EnrichBulk(ctx, BulkRequest{
		OrgID:       h.orgID,
		MemberID:    "member-1",
		CompanyIDs:  []uuid.UUID{a.ID, b.ID, c.ID},
		Filters:     filters,
		SaveFilters: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.CompaniesProcessed)
	assert.Equal(t, 1, result.CompaniesSucceeded)
	assert.Equal(t, 2, result.CompaniesFailed)
	assert.Equal(t, 3, result.TotalCreditsUsed)
	assert.ErrorIs(t, result.Err(), context.Canceled)
	assert.Zero(t, h.provider.callCount("b.com"))
	assert.Zero(t, h.provider.callCount("c.com"))

	usage, err := h.svc.Credits(context.Background(), h.orgID)
	require.NoError(t, err)
	assert.Equal(t, 3, usage.CreditsUsed)

	txns := h.store.transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, entity.TransactionBulk, txns[0].Type)
	assert.Equal(t, 3, txns[0].CreditsUsed)
	assert.Equal(t, 1, txns[0].ProviderCalls)
	assert.Equal(t, filters.Normalized(), h.store.orgFilters[h.orgID])
}

func TestEnrichBulk_WaitsBetweenCompanies(t *testing.T) {
	h := newHarness()
	var delays []time.Duration
	h.svc.bulkDelay = 250 * time.Millisecond
	h.svc.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	ids := make([]uuid.UUID, 0, 3)
	for _, domain := range []string{"a.com", "b.com", "c.com"} {
		ids = append(ids, h.store.addCompany(h.orgID, domain, domain).ID)
	}

	_, err := h.svc.EnrichBulk(context.Background(), BulkRequest{OrgID: h.orgID, CompanyIDs: ids})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, delays)
}

func ptrUUID(id uuid.UUID) *uuid.UUID {
	return &id
}
