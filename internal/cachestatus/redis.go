package cachestatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/octobees/leads-enrichment/api/internal/logger"
)

const redisKeyPrefix = "enrichment:cache-status:"

// RedisCache shares statuses between API replicas.
type RedisCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, log *logger.Logger, addr string, ttl time.Duration) (*RedisCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{
		log: log.With("service", "RedisCacheStatus"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

// Get reads the status from redis or loads and stores it. Redis failures fall
// back to the loader so status reads keep working without the shared cache.
func (c *RedisCache) Get(ctx context.Context, domain string, load LoadFunc) (Status, error) {
	key := cacheKey(domain)
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	switch {
	case err == nil:
		var status Status
		if jsonErr := json.Unmarshal(raw, &status); jsonErr == nil {
			return status, nil
		}
		c.log.Warn("discarding undecodable cache status", "domain", key)
	case !errors.Is(err, goredis.Nil):
		c.log.Warn("redis cache status read failed", "domain", key, "error", err)
	}

	status, err := load(ctx, key)
	if err != nil {
		return Status{}, err
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return status, nil
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("redis cache status write failed", "domain", key, "error", err)
	}
	return status, nil
}

// Invalidate drops the shared status for a domain.
func (c *RedisCache) Invalidate(ctx context.Context, domain string) error {
	if err := c.rdb.Del(ctx, redisKeyPrefix+cacheKey(domain)).Err(); err != nil {
		return fmt.Errorf("redis invalidate cache status: %w", err)
	}
	return nil
}

// Close releases the redis connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

var _ Cache = (*RedisCache)(nil)
