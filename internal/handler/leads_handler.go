package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/logger"
	middlewarepkg "github.com/octobees/leads-enrichment/api/internal/middleware"
	"github.com/octobees/leads-enrichment/api/internal/service"
)

// LeadPromoter turns an org employee into a lead.
type LeadPromoter interface {
	PromoteToLead(ctx context.Context, orgID, employeeID uuid.UUID) (*entity.Lead, error)
}

var _ LeadPromoter = (*service.LeadsService)(nil)

// LeadsHandler exposes the leads pipeline.
type LeadsHandler struct {
	leads LeadPromoter
	log   *logger.Logger
}

// NewLeadsHandler creates a new handler instance.
func NewLeadsHandler(leads LeadPromoter, log *logger.Logger) *LeadsHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &LeadsHandler{leads: leads, log: log}
}

// Promote handles POST /employees/:id/promote.
func (h *LeadsHandler) Promote(c echo.Context) error {
	orgID, ok := middlewarepkg.OrgIDFromContext(c)
	if !ok {
		return Error(c, http.StatusUnauthorized, "missing organization")
	}
	employeeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid employee id")
	}

	lead, err := h.leads.PromoteToLead(c.Request().Context(), orgID, employeeID)
	if err != nil {
		return serviceError(c, h.log, err, "failed to promote employee")
	}
	return Success(c, http.StatusCreated, "employee promoted to lead", lead)
}
