package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/octobees/leads-enrichment/api/internal/cachestatus"
	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/logger"
	"github.com/octobees/leads-enrichment/api/internal/provider"
	"github.com/octobees/leads-enrichment/api/internal/repository"
)

// defaultFetchTimeout bounds a shared provider fetch, which outlives the
// request that started it.
const defaultFetchTimeout = 2 * time.Minute

// EmployeeLookup asks the cache for the employees of one company.
type EmployeeLookup struct {
	Domain             string
	CompanyName        string
	CompanyLinkedinURL string
	Filters            entity.EnrichmentFilters
	ForceRefresh       bool
	FetchAll           bool
}

// EmployeeLookupResult is what the cache (or the provider behind it) returned.
type EmployeeLookupResult struct {
	Employees      []entity.GlobalEmployee
	CacheHit       bool
	TotalAvailable int
	ProviderCalls  int
}

// EmployeeCache serves employees from the global cache and falls back to the
// provider when the cache cannot answer.
type EmployeeCache struct {
	store          CacheStore
	provider       provider.Provider
	normalizer     *PersonNormalizer
	status         cachestatus.Cache
	log            *logger.Logger
	now            func() time.Time
	staleAfterDays int
	fetchTimeout   time.Duration
	group          singleflight.Group
}

// EmployeeCacheOption configures optional EmployeeCache settings.
type EmployeeCacheOption func(*EmployeeCache)

// WithClock overrides the time source used for staleness decisions.
func WithClock(now func() time.Time) EmployeeCacheOption {
	return func(c *EmployeeCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStaleAfterDays sets the default staleness window.
func WithStaleAfterDays(days int) EmployeeCacheOption {
	return func(c *EmployeeCache) {
		if days > 0 {
			c.staleAfterDays = days
		}
	}
}

// WithStatusCache sets the cache used for status reports.
func WithStatusCache(status cachestatus.Cache) EmployeeCacheOption {
	return func(c *EmployeeCache) {
		if status != nil {
			c.status = status
		}
	}
}

// WithNormalizer overrides the provider person normalizer.
func WithNormalizer(n *PersonNormalizer) EmployeeCacheOption {
	return func(c *EmployeeCache) {
		if n != nil {
			c.normalizer = n
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(log *logger.Logger) EmployeeCacheOption {
	return func(c *EmployeeCache) {
		if log != nil {
			c.log = log
		}
	}
}

// NewEmployeeCache wires the cache manager.
func NewEmployeeCache(store CacheStore, p provider.Provider, opts ...EmployeeCacheOption) *EmployeeCache {
	c := &EmployeeCache{
		store:          store,
		provider:       p,
		normalizer:     NewPersonNormalizer(defaultPhoneRegion),
		log:            logger.NewNop(),
		now:            time.Now,
		staleAfterDays: entity.DefaultStaleAfterDays,
		fetchTimeout:   defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.status == nil {
		c.status = cachestatus.NewMemoryCache(time.Minute)
	}
	return c
}

// GetOrFetchEmployees returns employees for a company, reusing the cache when
// it is fresh and fetching from the provider otherwise.
func (c *EmployeeCache) GetOrFetchEmployees(ctx context.Context, lookup EmployeeLookup) (EmployeeLookupResult, error) {
	domain := NormalizeDomain(lookup.Domain)
	if domain == "" {
		return EmployeeLookupResult{}, ErrMissingDomain
	}
	filters := lookup.Filters.Normalized()

	company, err := c.findCompany(ctx, domain)
	if err != nil {
		return EmployeeLookupResult{}, err
	}
	state := entity.ClassifyCache(company, c.now(), c.staleAfterDays)
	log := c.log.With("domain", domain, "state", string(state.Kind), "filters", filters.Key())

	if !lookup.ForceRefresh && state.IsFresh() {
		switch {
		case !filters.IsEmpty():
			cached, err := c.store.FindEmployees(ctx, domain, filters)
			if err != nil {
				return EmployeeLookupResult{}, fmt.Errorf("read cached employees: %w", err)
			}
			cached = matching(cached, filters)
			if len(cached) > 0 {
				log.Debug("filtered cache hit", "matches", len(cached))
				return hit(cached), nil
			}
			log.Debug("filtered cache miss")
		case company.EmployeesCountedAt != nil:
			cached, err := c.store.FindEmployees(ctx, domain, entity.EnrichmentFilters{})
			if err != nil {
				return EmployeeLookupResult{}, fmt.Errorf("read cached employees: %w", err)
			}
			log.Debug("cache hit", "employees", len(cached))
			return hit(cached), nil
		}
	}

	key := strings.Join([]string{domain, filters.Key(), strconv.FormatBool(lookup.FetchAll), strconv.FormatBool(lookup.ForceRefresh)}, "#")
	leader := false
	ch := c.group.DoChan(key, func() (any, error) {
		leader = true
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx, domain, lookup, filters)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return EmployeeLookupResult{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		log.Warn("provider fetch failed", "error", res.Err)
		return EmployeeLookupResult{}, res.Err
	}
	fetched := res.Val.([]entity.GlobalEmployee)
	log.Info("fetched employees from provider", "employees", len(fetched), "shared", res.Shared)

	// Only the caller that ran the fetch accounts for the provider call.
	calls := 0
	if leader {
		calls = 1
	}
	employees := make([]entity.GlobalEmployee, len(fetched))
	copy(employees, fetched)
	return EmployeeLookupResult{
		Employees:      employees,
		CacheHit:       false,
		TotalAvailable: len(employees),
		ProviderCalls:  calls,
	}, nil
}

// matching keeps the employees that pass the filters. The store applies the
// same rule in its query; rows it lets through that fail here are dropped.
func matching(employees []entity.GlobalEmployee, filters entity.EnrichmentFilters) []entity.GlobalEmployee {
	out := employees[:0:0]
	for _, e := range employees {
		if filters.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func hit(employees []entity.GlobalEmployee) EmployeeLookupResult {
	return EmployeeLookupResult{
		Employees:      employees,
		CacheHit:       true,
		TotalAvailable: len(employees),
	}
}

func (c *EmployeeCache) findCompany(ctx context.Context, domain string) (*entity.GlobalCompany, error) {
	company, err := c.store.FindCompanyByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cached company: %w", err)
	}
	return company, nil
}

func (c *EmployeeCache) fetch(ctx context.Context, domain string, lookup EmployeeLookup, filters entity.EnrichmentFilters) ([]entity.GlobalEmployee, error) {
	people, err := c.provider.SearchPeopleAtCompany(ctx, provider.SearchParams{
		Domain:      domain,
		Titles:      filters.Titles,
		Seniorities: filters.Seniorities,
		FetchAll:    lookup.FetchAll,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	fetchedAt := c.now().UTC()
	ref := CompanyRef{Domain: domain, Name: lookup.CompanyName, LinkedinURL: lookup.CompanyLinkedinURL}
	seen := make(map[string]struct{}, len(people))
	employees := make([]entity.GlobalEmployee, 0, len(people))
	for _, person := range people {
		employee, err := c.normalizer.Normalize(ref, person, fetchedAt)
		if err != nil {
			c.log.Debug("skipping provider person", "domain", domain, "error", err)
			continue
		}
		if _, dup := seen[employee.ApolloID]; dup {
			continue
		}
		seen[employee.ApolloID] = struct{}{}
		employees = append(employees, employee)
	}

	stored, err := c.store.UpsertEmployees(ctx, employees)
	if err != nil {
		return nil, fmt.Errorf("cache employees: %w", err)
	}

	upsert := repository.CompanyUpsert{
		Domain:    domain,
		Name:      lookup.CompanyName,
		FetchedAt: fetchedAt,
	}
	if lookup.CompanyLinkedinURL != "" {
		linkedin := lookup.CompanyLinkedinURL
		upsert.LinkedinURL = &linkedin
	}
	if filters.IsEmpty() {
		count := len(stored)
		upsert.EmployeesCount = &count
	}
	if _, err := c.store.UpsertCompany(ctx, upsert); err != nil {
		return nil, fmt.Errorf("cache company: %w", err)
	}

	if err := c.status.Invalidate(ctx, domain); err != nil {
		c.log.Warn("invalidate cache status failed", "domain", domain, "error", err)
	}
	if stored == nil {
		stored = []entity.GlobalEmployee{}
	}
	return stored, nil
}
