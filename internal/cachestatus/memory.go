package cachestatus

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type memoryValue struct {
	Status
	error
}

// MemoryCache keeps statuses in process with a fixed TTL.
type MemoryCache struct {
	cache *ttlcache.Cache[string, memoryValue]
}

// NewMemoryCache starts an in-process cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, memoryValue](ttl),
		ttlcache.WithDisableTouchOnHit[string, memoryValue](),
	)
	go cache.Start()
	return &MemoryCache{cache: cache}
}

// Get returns the cached status or loads and stores it. Load errors are not cached.
func (c *MemoryCache) Get(ctx context.Context, domain string, load LoadFunc) (Status, error) {
	key := cacheKey(domain)
	loader := ttlcache.LoaderFunc[string, memoryValue](
		func(cache *ttlcache.Cache[string, memoryValue], key string) *ttlcache.Item[string, memoryValue] {
			status, err := load(ctx, key)
			if err != nil {
				return ttlcache.NewItem(key, memoryValue{error: err}, ttlcache.NoTTL, false)
			}
			return cache.Set(key, memoryValue{Status: status}, ttlcache.DefaultTTL)
		},
	)
	item := c.cache.Get(key, ttlcache.WithLoader[string, memoryValue](loader))
	if item == nil {
		return Status{}, errors.New("failed to load cache status")
	}
	return item.Value().Status, item.Value().error
}

// Invalidate drops the status for a domain.
func (c *MemoryCache) Invalidate(_ context.Context, domain string) error {
	c.cache.Delete(cacheKey(domain))
	return nil
}

// Close stops the expiry loop.
func (c *MemoryCache) Close() error {
	c.cache.Stop()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
