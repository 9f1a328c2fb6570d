package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-enrichment/api/internal/dto"
	"github.com/octobees/leads-enrichment/api/internal/logger"
	middlewarepkg "github.com/octobees/leads-enrichment/api/internal/middleware"
)

const maxPostedWithinDays = 30

// ScrapeHandler forwards job-board scrape requests to the worker service.
// Scraped hiring companies come back into the org's company list.
type ScrapeHandler struct {
	worker WorkerPoster
	log    *logger.Logger
}

// NewScrapeHandler constructs a scrape handler backed by an HTTP client.
// If `client == nil`, an ID-token client is used for service-to-service calls.
func NewScrapeHandler(client *http.Client, workerBaseURL string, log *logger.Logger) *ScrapeHandler {
	return NewScrapeHandlerWithWorker(NewWorkerClient(client, workerBaseURL), log)
}

// NewScrapeHandlerWithWorker allows injecting a custom worker client.
func NewScrapeHandlerWithWorker(worker WorkerPoster, log *logger.Logger) *ScrapeHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &ScrapeHandler{worker: worker, log: log}
}

// Enqueue handles POST /scrape requests and forwards them to the worker.
func (h *ScrapeHandler) Enqueue(c echo.Context) error {
	orgID, ok := middlewarepkg.OrgIDFromContext(c)
	if !ok {
		return Error(c, http.StatusUnauthorized, "missing organization")
	}

	var req dto.ScrapeRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	req.JobTitle = strings.TrimSpace(req.JobTitle)
	req.City = strings.TrimSpace(req.City)
	req.Country = strings.TrimSpace(req.Country)
	if req.JobTitle == "" {
		return Error(c, http.StatusBadRequest, "job_title is required")
	}

	if req.City == "" || req.Country == "" {
		parts := strings.Split(req.Location, ",")
		if len(parts) >= 2 {
			req.City = strings.TrimSpace(parts[0])
			req.Country = strings.TrimSpace(parts[len(parts)-1])
		}
	}
	if req.City == "" || req.Country == "" {
		return Error(c, http.StatusBadRequest, "city and country are required")
	}

	payload := map[string]any{
		"org_id":    orgID.String(),
		"job_title": req.JobTitle,
		"city":      req.City,
		"country":   req.Country,
	}
	if req.PostedWithinDays > 0 {
		days := req.PostedWithinDays
		if days > maxPostedWithinDays {
			days = maxPostedWithinDays
		}
		payload["posted_within_days"] = days
	}
	if icp := strings.TrimSpace(req.ICPID); icp != "" {
		if _, err := uuid.Parse(icp); err != nil {
			return Error(c, http.StatusBadRequest, "invalid icp_id")
		}
		payload["icp_id"] = icp
	}
	if member := middlewarepkg.MemberIDFromContext(c); member != "" {
		payload["member_id"] = member
	}

	data, err := h.worker.PostJSON(c.Request().Context(), "/scrape", payload, middlewarepkg.RequestIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrWorkerUnavailable) {
			return Error(c, http.StatusServiceUnavailable, err.Error())
		}
		h.log.Warn("scrape worker call failed", "org_id", orgID, "error", err)
		return Error(c, http.StatusBadGateway, err.Error())
	}
	if data == nil {
		data = map[string]any{"status": "queued"}
	}
	return Success(c, http.StatusOK, "scrape job queued", data)
}
