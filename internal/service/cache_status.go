package service

import (
	"context"
	"fmt"

	"github.com/octobees/leads-enrichment/api/internal/cachestatus"
	"github.com/octobees/leads-enrichment/api/internal/entity"
)

// CacheStatus reports what the global cache holds for a domain.
func (s *EnrichmentService) CacheStatus(ctx context.Context, domain string) (cachestatus.Status, error) {
	return s.cache.Status(ctx, domain)
}

// Status reports what the cache holds for a domain.
func (c *EmployeeCache) Status(ctx context.Context, rawDomain string) (cachestatus.Status, error) {
	domain := NormalizeDomain(rawDomain)
	if domain == "" {
		return cachestatus.Status{}, fmt.Errorf("%w: domain is required", ErrInvalidInput)
	}
	status, err := c.status.Get(ctx, domain, c.loadStatus)
	if err != nil {
		return cachestatus.Status{}, err
	}
	// Entries outlive the staleness boundary; derive freshness at read time.
	if status.StaleAt != nil && !c.now().Before(*status.StaleAt) {
		status.IsStale = true
		status.State = string(entity.CacheStale)
	}
	return status, nil
}

func (c *EmployeeCache) loadStatus(ctx context.Context, domain string) (cachestatus.Status, error) {
	company, err := c.findCompany(ctx, domain)
	if err != nil {
		return cachestatus.Status{}, err
	}
	state := entity.ClassifyCache(company, c.now(), c.staleAfterDays)
	status := cachestatus.Status{
		Domain: domain,
		State:  string(state.Kind),
	}
	if company == nil {
		return status, nil
	}

	cached, err := c.store.CountEmployees(ctx, domain)
	if err != nil {
		return cachestatus.Status{}, fmt.Errorf("count cached employees: %w", err)
	}
	status.Exists = true
	status.EmployeesCount = company.EmployeesCount
	status.CachedEmployees = cached
	status.IsStale = state.Kind == entity.CacheStale
	status.LastFetchedAt = company.EmployeesLastFetchedAt
	if state.Kind != entity.CacheUnfetched {
		staleAt := state.ExpiresAt
		status.StaleAt = &staleAt
	}
	return status, nil
}
