package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-enrichment/api/internal/auth"
	"github.com/octobees/leads-enrichment/api/internal/config"
	"github.com/octobees/leads-enrichment/api/internal/handler"
	middlewarepkg "github.com/octobees/leads-enrichment/api/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Enrichment *handler.EnrichmentHandler
	Leads      *handler.LeadsHandler
	Scrape     *handler.ScrapeHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(jwtManager), middlewarepkg.RequireOrg())

	enrichLimit := middlewarepkg.RateLimiter(cfg.RateLimitEnrich,
		"/enrich/companies/:id",
		"/enrich/bulk",
		"/enrich/companies/:id/preview",
		"/enrich/preview",
	)

	enrich := secured.Group("/enrich", enrichLimit)
	enrich.POST("/companies/:id", handlers.Enrichment.EnrichCompany)
	enrich.POST("/companies/:id/preview", handlers.Enrichment.PreviewCompany)
	enrich.POST("/bulk", handlers.Enrichment.EnrichBulk)
	enrich.POST("/preview", handlers.Enrichment.PreviewBulk)
	enrich.GET("/cache-status", handlers.Enrichment.CacheStatus)

	secured.GET("/credits", handlers.Enrichment.Credits)
	secured.POST("/employees/:id/promote", handlers.Leads.Promote)

	if handlers.Scrape != nil {
		secured.POST("/scrape", handlers.Scrape.Enqueue,
			middlewarepkg.RequireRole(auth.RoleAdmin),
			middlewarepkg.RateLimiter(cfg.RateLimitScrape, "/scrape"),
		)
	}
}
