package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// ProviderConfig holds settings for the people-search provider gateway.
type ProviderConfig struct {
	BaseURL       string
	APIKey        string
	UseIDToken    bool
	RateLimit     RateLimitConfig
	PerPage       int
	MaxPages      int
	RetryAttempts int
	RetryBackoff  time.Duration
}

// EnrichmentConfig holds the cache and credit policy knobs.
type EnrichmentConfig struct {
	StaleAfterDays      int
	DefaultCreditsLimit int
	BulkCompanyDelay    time.Duration
	CacheStatusTTL      time.Duration
	PhoneDefaultRegion  string
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	Port            string
	WorkerBaseURL   string
	LogMode         string
	RedisAddr       string
	RateLimitScrape RateLimitConfig
	RateLimitEnrich RateLimitConfig
	TokenTTL        time.Duration
	Provider        ProviderConfig
	Enrichment      EnrichmentConfig
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret"),
		Port:          getEnv("PORT", "8080"),
		WorkerBaseURL: getEnv("WORKER_BASE_URL", "http://worker:9000"),
		LogMode:       getEnv("LOG_MODE", "development"),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		TokenTTL:      parseDuration(getEnv("JWT_TTL", "24h"), 24*time.Hour),
	}

	var err error
	if cfg.RateLimitScrape, err = parseRateLimit(getEnv("RATE_LIMIT_SCRAPE", "5/min")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SCRAPE value: %w", err)
	}
	if cfg.RateLimitEnrich, err = parseRateLimit(getEnv("RATE_LIMIT_ENRICH", "30/min")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_ENRICH value: %w", err)
	}

	provider := ProviderConfig{
		BaseURL:      strings.TrimRight(getEnv("PROVIDER_BASE_URL", "https://api.apollo.io"), "/"),
		APIKey:       os.Getenv("PROVIDER_API_KEY"),
		UseIDToken:   parseBool(getEnv("PROVIDER_USE_ID_TOKEN", "false")),
		RetryBackoff: parseDuration(getEnv("PROVIDER_RETRY_BACKOFF", "500ms"), 500*time.Millisecond),
	}
	if provider.RateLimit, err = parseRateLimit(getEnv("PROVIDER_RATE_LIMIT", "5/sec")); err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_RATE_LIMIT value: %w", err)
	}
	if provider.PerPage, err = parsePositiveInt("PROVIDER_PER_PAGE", "100"); err != nil {
		return nil, err
	}
	if provider.MaxPages, err = parsePositiveInt("PROVIDER_MAX_PAGES", "1"); err != nil {
		return nil, err
	}
	if provider.RetryAttempts, err = parsePositiveInt("PROVIDER_RETRY_ATTEMPTS", "3"); err != nil {
		return nil, err
	}
	cfg.Provider = provider

	enrichment := EnrichmentConfig{
		BulkCompanyDelay:   parseDuration(getEnv("BULK_COMPANY_DELAY", "500ms"), 500*time.Millisecond),
		CacheStatusTTL:     parseDuration(getEnv("CACHE_STATUS_TTL", "1m"), time.Minute),
		PhoneDefaultRegion: strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "US")),
	}
	if enrichment.StaleAfterDays, err = parsePositiveInt("CACHE_STALE_AFTER_DAYS", "30"); err != nil {
		return nil, err
	}
	if enrichment.DefaultCreditsLimit, err = parsePositiveInt("DEFAULT_CREDITS_LIMIT", "30"); err != nil {
		return nil, err
	}
	cfg.Enrichment = enrichment

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func parsePositiveInt(key, fallback string) (int, error) {
	raw := getEnv(key, fallback)
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s value: %q", key, raw)
	}
	return value, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseDuration(input string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil {
		return fallback
	}
	return d
}

func parseBool(input string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(input))
	return err == nil && b
}
