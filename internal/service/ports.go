package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/repository"
)

// CacheStore is the platform-wide cache shared by every organization.
type CacheStore interface {
	FindCompanyByDomain(ctx context.Context, domain string) (*entity.GlobalCompany, error)
	FindEmployees(ctx context.Context, domain string, filters entity.EnrichmentFilters) ([]entity.GlobalEmployee, error)
	CountEmployees(ctx context.Context, domain string) (int, error)
	UpsertEmployees(ctx context.Context, employees []entity.GlobalEmployee) ([]entity.GlobalEmployee, error)
	UpsertCompany(ctx context.Context, input repository.CompanyUpsert) (*entity.GlobalCompany, error)
}

// OrgStore holds organization-scoped companies, employees and leads.
type OrgStore interface {
	GetCompany(ctx context.Context, orgID, companyID uuid.UUID) (*entity.OrgCompany, error)
	ListCompanies(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]entity.OrgCompany, error)
	ListICPCompanies(ctx context.Context, orgID, icpID uuid.UUID) ([]entity.OrgCompany, error)
	ExistingDedupeKeys(ctx context.Context, orgID, companyID uuid.UUID) (map[string]struct{}, error)
	InsertEmployeesAndCharge(ctx context.Context, batch repository.MaterializeBatch) (int, error)
	SaveOrgFilters(ctx context.Context, orgID uuid.UUID, filters entity.EnrichmentFilters) error
	SaveICPFilters(ctx context.Context, orgID, icpID uuid.UUID, filters entity.EnrichmentFilters) error
	PromoteToLead(ctx context.Context, orgID, employeeID uuid.UUID) (*entity.Lead, error)
}

// CreditStore reads balances and appends ledger entries.
type CreditStore interface {
	GetUsage(ctx context.Context, orgID uuid.UUID, defaultLimit int) (entity.CreditUsage, error)
	GetMemberUsage(ctx context.Context, orgID uuid.UUID, memberID string) (*entity.MemberCreditUsage, error)
	RecordTransaction(ctx context.Context, txn *entity.EnrichmentTransaction) error
}

var (
	_ CacheStore  = (*repository.PGXGlobalCacheRepository)(nil)
	_ OrgStore    = (*repository.PGXOrgRepository)(nil)
	_ CreditStore = (*repository.PGXCreditsRepository)(nil)
)
