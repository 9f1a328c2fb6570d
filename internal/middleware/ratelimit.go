package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/octobees/leads-enrichment/api/internal/config"
)

const (
	limiterIdleTTL  = 30 * time.Minute
	limiterCapacity = 10000
)

// RateLimiter applies a token bucket per organization to the given route
// paths. Unauthenticated callers are keyed by IP. Other paths pass through.
func RateLimiter(cfg config.RateLimitConfig, paths ...string) echo.MiddlewareFunc {
	if cfg.Requests <= 0 || cfg.Interval <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return next(c)
			}
		}
	}

	perRequest := cfg.Interval / time.Duration(cfg.Requests)
	if perRequest <= 0 {
		perRequest = time.Second
	}

	limited := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		limited[p] = struct{}{}
	}
	limiters := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL),
		ttlcache.WithCapacity[string, *rate.Limiter](limiterCapacity),
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := limited[c.Path()]; !ok {
				return next(c)
			}

			key := "ip:" + c.RealIP()
			if orgID, ok := OrgIDFromContext(c); ok {
				key = "org:" + orgID.String()
			}
			item, _ := limiters.GetOrSetFunc(key, func() *rate.Limiter {
				return rate.NewLimiter(rate.Every(perRequest), cfg.Requests)
			})

			if !item.Value().Allow() {
				c.Response().Header().Set("Retry-After", retryAfter(perRequest))
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			}

			return next(c)
		}
	}
}

func retryAfter(d time.Duration) string {
	seconds := int(d.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
