package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/octobees/leads-enrichment/api/internal/auth"
	"github.com/octobees/leads-enrichment/api/internal/cachestatus"
	"github.com/octobees/leads-enrichment/api/internal/config"
	"github.com/octobees/leads-enrichment/api/internal/database"
	"github.com/octobees/leads-enrichment/api/internal/handler"
	"github.com/octobees/leads-enrichment/api/internal/logger"
	middlewarepkg "github.com/octobees/leads-enrichment/api/internal/middleware"
	"github.com/octobees/leads-enrichment/api/internal/provider"
	"github.com/octobees/leads-enrichment/api/internal/repository"
	"github.com/octobees/leads-enrichment/api/internal/router"
	"github.com/octobees/leads-enrichment/api/internal/service"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		return err
	}
	defer pool.Close()

	if migrateOnStart {
		if err := database.MigrateUp(pool); err != nil {
			log.Error("failed to apply migrations", "error", err)
			return err
		}
	}

	statusCache := newStatusCache(ctx, cfg, log)
	defer statusCache.Close()

	globalRepo := repository.NewPGXGlobalCacheRepository(pool)
	orgRepo := repository.NewPGXOrgRepository(pool)
	creditsRepo := repository.NewPGXCreditsRepository(pool)

	employeeCache := service.NewEmployeeCache(globalRepo, newProvider(cfg, log),
		service.WithStaleAfterDays(cfg.Enrichment.StaleAfterDays),
		service.WithStatusCache(statusCache),
		service.WithNormalizer(service.NewPersonNormalizer(cfg.Enrichment.PhoneDefaultRegion)),
		service.WithCacheLogger(log.With("component", "employee_cache")),
	)
	ledger := service.NewCreditLedger(creditsRepo, cfg.Enrichment.DefaultCreditsLimit)
	materializer := service.NewMaterializer(orgRepo, ledger.DefaultLimit(), nil)
	enrichment := service.NewEnrichmentService(orgRepo, employeeCache, ledger, materializer,
		service.WithBulkDelay(cfg.Enrichment.BulkCompanyDelay),
		service.WithLogger(log.With("component", "enrichment")),
	)
	leads := service.NewLeadsService(orgRepo, log.With("component", "leads"))

	httpClient := &http.Client{Timeout: 15 * time.Second}
	handlers := router.Handlers{
		Enrichment: handler.NewEnrichmentHandler(enrichment, log),
		Leads:      handler.NewLeadsHandler(leads, log),
		Scrape:     handler.NewScrapeHandler(httpClient, cfg.WorkerBaseURL, log),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(log))
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL), handlers)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "port", cfg.Port)
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return err
	}
	return nil
}

func newProvider(cfg *config.Config, log *logger.Logger) provider.Provider {
	if cfg.Provider.APIKey == "" && !cfg.Provider.UseIDToken {
		log.Warn("PROVIDER_API_KEY is empty, provider calls will be rejected")
	}

	limit := cfg.Provider.RateLimit
	limiter := rate.NewLimiter(rate.Every(limit.Interval/time.Duration(limit.Requests)), limit.Requests)

	client := provider.NewClient(nil, cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.UseIDToken,
		provider.WithPerPage(cfg.Provider.PerPage),
		provider.WithMaxPages(cfg.Provider.MaxPages),
		provider.WithRateLimit(limiter),
	)
	return provider.WithRetry(client, cfg.Provider.RetryAttempts, cfg.Provider.RetryBackoff)
}

// newStatusCache prefers redis when configured and falls back to the in-process cache.
func newStatusCache(ctx context.Context, cfg *config.Config, log *logger.Logger) cachestatus.Cache {
	if cfg.RedisAddr != "" {
		redisCache, err := cachestatus.NewRedisCache(ctx, log, cfg.RedisAddr, cfg.Enrichment.CacheStatusTTL)
		if err == nil {
			return redisCache
		}
		log.Warn("redis unavailable, using in-process cache status", "addr", cfg.RedisAddr, "error", err)
	}
	return cachestatus.NewMemoryCache(cfg.Enrichment.CacheStatusTTL)
}
