package entity

import "time"

// DefaultStaleAfterDays is the staleness window used when a company has no override.
const DefaultStaleAfterDays = 30

// CacheStateKind tags the freshness of a company's cached employees.
type CacheStateKind string

const (
	CacheUnfetched CacheStateKind = "unfetched"
	CacheFresh     CacheStateKind = "fresh"
	CacheStale     CacheStateKind = "stale"
)

// CacheState is computed once per request and threaded through the cache decision.
type CacheState struct {
	Kind      CacheStateKind
	FetchedAt time.Time
	ExpiresAt time.Time
}

// ClassifyCache derives the cache state of a company at the given instant.
// A nil company or a nil fetch timestamp is Unfetched. A company is stale once
// now reaches fetchedAt + window.
func ClassifyCache(company *GlobalCompany, now time.Time, defaultDays int) CacheState {
	if company == nil || company.EmployeesLastFetchedAt == nil {
		return CacheState{Kind: CacheUnfetched}
	}
	days := defaultDays
	if days <= 0 {
		days = DefaultStaleAfterDays
	}
	if company.StaleAfterDays != nil && *company.StaleAfterDays > 0 {
		days = *company.StaleAfterDays
	}
	fetchedAt := *company.EmployeesLastFetchedAt
	expires := fetchedAt.Add(time.Duration(days) * 24 * time.Hour)
	if now.Before(expires) {
		return CacheState{Kind: CacheFresh, FetchedAt: fetchedAt, ExpiresAt: expires}
	}
	return CacheState{Kind: CacheStale, FetchedAt: fetchedAt, ExpiresAt: expires}
}

func (s CacheState) IsFresh() bool { return s.Kind == CacheFresh }
