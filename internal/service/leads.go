package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/logger"
)

// LeadsService moves enriched employees into the outreach pipeline.
type LeadsService struct {
	orgs OrgStore
	log  *logger.Logger
}

// NewLeadsService creates a new instance of LeadsService.
func NewLeadsService(orgs OrgStore, log *logger.Logger) *LeadsService {
	if log == nil {
		log = logger.NewNop()
	}
	return &LeadsService{orgs: orgs, log: log}
}

// PromoteToLead creates a lead from an org employee and shortlists the employee.
func (s *LeadsService) PromoteToLead(ctx context.Context, orgID, employeeID uuid.UUID) (*entity.Lead, error) {
	lead, err := s.orgs.PromoteToLead(ctx, orgID, employeeID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.log.Info("employee promoted to lead", "org_id", orgID, "employee_id", employeeID, "lead_id", lead.ID)
	return lead, nil
}
