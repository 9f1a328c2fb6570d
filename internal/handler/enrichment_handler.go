package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-enrichment/api/internal/cachestatus"
	"github.com/octobees/leads-enrichment/api/internal/dto"
	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/logger"
	middlewarepkg "github.com/octobees/leads-enrichment/api/internal/middleware"
	"github.com/octobees/leads-enrichment/api/internal/service"
)

// EnrichmentEngine is the subset of the enrichment service the HTTP layer drives.
type EnrichmentEngine interface {
	EnrichCompany(ctx context.Context, req service.SingleEnrichRequest) (service.SingleEnrichResult, error)
	EnrichBulk(ctx context.Context, req service.BulkRequest) (service.BulkResult, error)
	PreviewCompany(ctx context.Context, req service.PreviewRequest, companyID uuid.UUID) (service.PreviewResult, error)
	PreviewBulk(ctx context.Context, req service.PreviewRequest) (service.PreviewResult, error)
	CacheStatus(ctx context.Context, domain string) (cachestatus.Status, error)
	Credits(ctx context.Context, orgID uuid.UUID) (entity.CreditUsage, error)
}

var _ EnrichmentEngine = (*service.EnrichmentService)(nil)

// EnrichmentHandler exposes company enrichment endpoints.
type EnrichmentHandler struct {
	engine EnrichmentEngine
	log    *logger.Logger
}

// NewEnrichmentHandler wires a new EnrichmentHandler instance.
func NewEnrichmentHandler(engine EnrichmentEngine, log *logger.Logger) *EnrichmentHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &EnrichmentHandler{engine: engine, log: log}
}

// EnrichCompany handles POST /enrich/companies/:id.
func (h *EnrichmentHandler) EnrichCompany(c echo.Context) error {
	orgID, ok := middlewarepkg.OrgIDFromContext(c)
	if !ok {
		return Error(c, http.StatusUnauthorized, "missing organization")
	}
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid company id")
	}

	var req dto.EnrichCompanyRequest
	if err := bindOptional(c, &req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	if err := validateFilters(req.Filters); err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	result, err := h.engine.EnrichCompany(c.Request().Context(), service.SingleEnrichRequest{
		OrgID:            orgID,
		MemberID:         middlewarepkg.MemberIDFromContext(c),
		CompanyID:        companyID,
		Filters:          req.Filters,
		SaveFiltersToICP: req.SaveFiltersToICP,
		ForceRefresh:     req.ForceRefresh,
		FetchAll:         req.FetchAll,
	})
	if err != nil {
		return serviceError(c, h.log, err, "failed to enrich company")
	}
	return Success(c, http.StatusOK, "company enriched", result)
}

// EnrichBulk handles POST /enrich/bulk. Per-company failures are reported in
// the body with a 200.
func (h *EnrichmentHandler) EnrichBulk(c echo.Context) error {
	orgID, ok := middlewarepkg.OrgIDFromContext(c)
	if !ok {
		return Error(c, http.StatusUnauthorized, "missing organization")
	}

	var req dto.BulkEnrichRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	companyIDs, icpID, err := parseScope(req.CompanyIDs, req.ICPID)
	if err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}
	if err := validateFilters(req.Filters); err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	result, err := h.engine.EnrichBulk(c.Request().Context(), service.BulkRequest{
		OrgID:        orgID,
		MemberID:     middlewarepkg.MemberIDFromContext(c),
		CompanyIDs:   companyIDs,
		ICPID:        icpID,
		Filters:      req.Filters,
		FetchAll:     req.FetchAll,
		ForceRefresh: req.ForceRefresh,
		SaveFilters:  req.SaveFilters,
	})
	if err != nil {
		return serviceError(c, h.log, err, "failed to enrich companies")
	}

	message := "bulk enrichment completed"
	if result.CompaniesFailed > 0 {
		message = fmt.Sprintf("bulk enrichment completed with %d failed companies", result.CompaniesFailed)
	}
	return Success(c, http.StatusOK, message, result)
}

// PreviewCompany handles POST /enrich/companies/:id/preview.
func (h *EnrichmentHandler) PreviewCompany(c echo.Context) error {
	orgID, ok := middlewarepkg.OrgIDFromContext(c)
	if !ok {
		return Error(c, http.StatusUnauthorized, "missing organization")
	}
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid company id")
	}

	var req dto.PreviewRequest
	if err := bindOptional(c, &req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	if err := validateFilters(req.Filters); err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	result, err := h.engine.PreviewCompany(c.Request().Context(), service.PreviewRequest{
		OrgID:        orgID,
		MemberID:     middlewarepkg.MemberIDFromContext(c),
		Filters:      req.Filters,
		ForceRefresh: req.ForceRefresh,
		FetchAll:     req.FetchAll,
	}, companyID)
	if err != nil {
		return serviceError(c, h.log, err, "failed to preview company")
	}
	return Success(c, http.StatusOK, "ok", result)
}

// PreviewBulk handles POST /enrich/preview.
func (h *EnrichmentHandler) PreviewBulk(c echo.Context) error {
	orgID, ok := middlewarepkg.OrgIDFromContext(c)
	if !ok {
		return Error(c, http.StatusUnauthorized, "missing organization")
	}

	var req dto.PreviewRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	companyIDs, icpID, err := parseScope(req.CompanyIDs, req.ICPID)
	if err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}
	if err := validateFilters(req.Filters); err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	result, err := h.engine.PreviewBulk(c.Request().Context(), service.PreviewRequest{
		OrgID:        orgID,
		MemberID:     middlewarepkg.MemberIDFromContext(c),
		CompanyIDs:   companyIDs,
		ICPID:        icpID,
		Filters:      req.Filters,
		ForceRefresh: req.ForceRefresh,
		FetchAll:     req.FetchAll,
	})
	if err != nil {
		return serviceError(c, h.log, err, "failed to preview companies")
	}
	return Success(c, http.StatusOK, "ok", result)
}

// CacheStatus handles GET /enrich/cache-status?domain=.
func (h *EnrichmentHandler) CacheStatus(c echo.Context) error {
	domain := strings.TrimSpace(c.QueryParam("domain"))
	if domain == "" {
		return Error(c, http.StatusBadRequest, "domain is required")
	}

	status, err := h.engine.CacheStatus(c.Request().Context(), domain)
	if err != nil {
		return serviceError(c, h.log, err, "failed to read cache status")
	}
	return Success(c, http.StatusOK, "ok", status)
}

// Credits handles GET /credits.
func (h *EnrichmentHandler) Credits(c echo.Context) error {
	orgID, ok := middlewarepkg.OrgIDFromContext(c)
	if !ok {
		return Error(c, http.StatusUnauthorized, "missing organization")
	}

	usage, err := h.engine.Credits(c.Request().Context(), orgID)
	if err != nil {
		return serviceError(c, h.log, err, "failed to read credits")
	}
	return Success(c, http.StatusOK, "ok", dto.CreditsResponse{
		CreditsUsed:      usage.CreditsUsed,
		CreditsLimit:     usage.CreditsLimit,
		CreditsRemaining: usage.Remaining(),
	})
}

// bindOptional binds a JSON body when one was sent.
func bindOptional(c echo.Context, target any) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	return c.Bind(target)
}

func parseScope(rawIDs []string, rawICP string) ([]uuid.UUID, *uuid.UUID, error) {
	if icp := strings.TrimSpace(rawICP); icp != "" {
		id, err := uuid.Parse(icp)
		if err != nil {
			return nil, nil, errors.New("invalid icp_id")
		}
		return nil, &id, nil
	}
	if len(rawIDs) == 0 {
		return nil, nil, errors.New("company_ids or icp_id is required")
	}
	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid company id %q", raw)
		}
		ids = append(ids, id)
	}
	return ids, nil, nil
}

func validateFilters(filters entity.EnrichmentFilters) error {
	known := make(map[string]struct{}, len(entity.Seniorities))
	for _, s := range entity.Seniorities {
		known[s] = struct{}{}
	}
	for _, s := range filters.Normalized().Seniorities {
		if _, ok := known[s]; !ok {
			return fmt.Errorf("unknown seniority %q", s)
		}
	}
	return nil
}
