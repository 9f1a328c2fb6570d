// Package cachestatus memoizes per-domain cache status reports between fetches.
package cachestatus

import (
	"context"
	"strings"
	"time"
)

// Status summarizes what the global cache holds for a domain.
type Status struct {
	Domain          string     `json:"domain"`
	Exists          bool       `json:"exists"`
	EmployeesCount  int        `json:"employees_count"`
	CachedEmployees int        `json:"cached_employees"`
	State           string     `json:"state"`
	IsStale         bool       `json:"is_stale"`
	LastFetchedAt   *time.Time `json:"last_fetched_at,omitempty"`
	StaleAt         *time.Time `json:"stale_at,omitempty"`
}

// LoadFunc computes a fresh status for a domain on a cache miss.
type LoadFunc func(ctx context.Context, domain string) (Status, error)

// Cache is a read-through store of statuses keyed by normalized domain.
type Cache interface {
	Get(ctx context.Context, domain string, load LoadFunc) (Status, error)
	Invalidate(ctx context.Context, domain string) error
	Close() error
}

func cacheKey(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
