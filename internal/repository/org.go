package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/leads-enrichment/api/internal/entity"
)

// OrgRepository persists organization-scoped companies, employees and leads.
type OrgRepository interface {
	GetCompany(ctx context.Context, orgID, companyID uuid.UUID) (*entity.OrgCompany, error)
	ListCompanies(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]entity.OrgCompany, error)
	ListICPCompanies(ctx context.Context, orgID, icpID uuid.UUID) ([]entity.OrgCompany, error)
	ExistingDedupeKeys(ctx context.Context, orgID, companyID uuid.UUID) (map[string]struct{}, error)
	InsertEmployeesAndCharge(ctx context.Context, batch MaterializeBatch) (int, error)
	SaveOrgFilters(ctx context.Context, orgID uuid.UUID, filters entity.EnrichmentFilters) error
	SaveICPFilters(ctx context.Context, orgID, icpID uuid.UUID, filters entity.EnrichmentFilters) error
	PromoteToLead(ctx context.Context, orgID, employeeID uuid.UUID) (*entity.Lead, error)
}

// MaterializeBatch is a set of org employee rows copied for one company,
// charged one credit per inserted row.
type MaterializeBatch struct {
	OrgID               uuid.UUID
	MemberID            string
	CompanyID           uuid.UUID
	DefaultCreditsLimit int
	Employees           []entity.OrgEmployee
}

// DedupeKey identifies an org employee within a company: the lower-cased email
// when present, otherwise the lower-cased first and last name.
func DedupeKey(email *string, firstName, lastName string) string {
	if email != nil {
		if e := strings.ToLower(strings.TrimSpace(*email)); e != "" {
			return "e:" + e
		}
	}
	return "n:" + strings.ToLower(strings.TrimSpace(firstName)) + "|" + strings.ToLower(strings.TrimSpace(lastName))
}

// PGXOrgRepository implements OrgRepository using pgx.
type PGXOrgRepository struct {
	pool pgxPool
}

// NewPGXOrgRepository wires a pgx backed org repository.
func NewPGXOrgRepository(pool *pgxpool.Pool) *PGXOrgRepository {
	return &PGXOrgRepository{pool: pool}
}

const orgCompanyColumns = `id, org_id, icp_id, name, domain, linkedin_url, created_at`

// GetCompany loads a company owned by the organization.
func (r *PGXOrgRepository) GetCompany(ctx context.Context, orgID, companyID uuid.UUID) (*entity.OrgCompany, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orgCompanyColumns+` FROM org_companies WHERE org_id = $1 AND id = $2`, orgID, companyID)

	var company entity.OrgCompany
	if err := scanOrgCompany(row, &company); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query org company: %w", err)
	}
	return &company, nil
}

// ListCompanies loads the organization's companies among ids. Missing ids are
// simply absent from the result.
func (r *PGXOrgRepository) ListCompanies(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]entity.OrgCompany, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orgCompanyColumns+` FROM org_companies WHERE org_id = $1 AND id = ANY ($2)`, orgID, ids)
	if err != nil {
		return nil, fmt.Errorf("list org companies: %w", err)
	}
	return collectOrgCompanies(rows)
}

// ListICPCompanies loads every company grouped under an ICP of the organization.
func (r *PGXOrgRepository) ListICPCompanies(ctx context.Context, orgID, icpID uuid.UUID) ([]entity.OrgCompany, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM icps WHERE org_id = $1 AND id = $2)`, orgID, icpID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("query icp: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := r.pool.Query(ctx, `SELECT `+orgCompanyColumns+` FROM org_companies WHERE org_id = $1 AND icp_id = $2 ORDER BY created_at, id`, orgID, icpID)
	if err != nil {
		return nil, fmt.Errorf("list icp companies: %w", err)
	}
	return collectOrgCompanies(rows)
}

// ExistingDedupeKeys returns the dedupe keys already present for a company.
func (r *PGXOrgRepository) ExistingDedupeKeys(ctx context.Context, orgID, companyID uuid.UUID) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT email, first_name, last_name FROM org_employees WHERE org_id = $1 AND company_id = $2`, orgID, companyID)
	if err != nil {
		return nil, fmt.Errorf("list org employee keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var (
			email           *string
			first, lastName string
		)
		if err := rows.Scan(&email, &first, &lastName); err != nil {
			return nil, fmt.Errorf("scan org employee key: %w", err)
		}
		keys[DedupeKey(email, first, lastName)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate org employee keys: %w", err)
	}
	return keys, nil
}

const insertOrgEmployeeSQL = `
        INSERT INTO org_employees (
            org_id, company_id, global_employee_id, first_name, last_name, email, phone,
            job_title, linkedin_url, location, seniority, department, metadata
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT DO NOTHING;
    `

// InsertEmployeesAndCharge copies rows into the organization and charges one
// credit per row actually inserted, all in one transaction. Rows hitting a
// dedupe index are skipped and not charged. When the guarded increment fails
// nothing is kept and ErrCreditLimitExceeded is returned.
func (r *PGXOrgRepository) InsertEmployeesAndCharge(ctx context.Context, batch MaterializeBatch) (int, error) {
	if len(batch.Employees) == 0 {
		return 0, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("start materialize tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, employee := range batch.Employees {
		metadata, err := jsonbOrEmpty(employee.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode org employee metadata: %w", err)
		}
		cmd, err := tx.Exec(ctx, insertOrgEmployeeSQL,
			batch.OrgID,
			batch.CompanyID,
			employee.GlobalEmployeeID,
			employee.FirstName,
			employee.LastName,
			stringOrNil(employee.Email),
			stringOrNil(employee.Phone),
			stringOrNil(employee.JobTitle),
			stringOrNil(employee.LinkedinURL),
			stringOrNil(employee.Location),
			stringOrNil(employee.Seniority),
			stringOrNil(employee.Department),
			metadata,
		)
		if err != nil {
			return 0, fmt.Errorf("insert org employee: %w", err)
		}
		inserted += int(cmd.RowsAffected())
	}

	if inserted > 0 {
		if err := chargeCredits(ctx, tx, batch, inserted); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit materialize tx: %w", err)
	}
	return inserted, nil
}

func chargeCredits(ctx context.Context, tx pgx.Tx, batch MaterializeBatch, amount int) error {
	limit := batch.DefaultCreditsLimit
	if limit <= 0 {
		limit = DefaultCreditsLimit
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO credit_usage (org_id, credits_limit) VALUES ($1, $2)
        ON CONFLICT (org_id) DO NOTHING
    `, batch.OrgID, limit); err != nil {
		return fmt.Errorf("ensure credit usage: %w", err)
	}

	cmd, err := tx.Exec(ctx, `
        UPDATE credit_usage
        SET credits_used = credits_used + $2, updated_at = NOW()
        WHERE org_id = $1 AND credits_used + $2 <= credits_limit
    `, batch.OrgID, amount)
	if err != nil {
		return fmt.Errorf("charge org credits: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrCreditLimitExceeded
	}

	if strings.TrimSpace(batch.MemberID) == "" {
		return nil
	}
	cmd, err = tx.Exec(ctx, `
        INSERT INTO member_credit_usage (org_id, member_id, credits_used) VALUES ($1, $2, $3)
        ON CONFLICT (org_id, member_id) DO UPDATE SET
            credits_used = member_credit_usage.credits_used + EXCLUDED.credits_used,
            updated_at = NOW()
        WHERE member_credit_usage.credits_limit IS NULL
           OR member_credit_usage.credits_used + EXCLUDED.credits_used <= member_credit_usage.credits_limit
    `, batch.OrgID, batch.MemberID, amount)
	if err != nil {
		return fmt.Errorf("charge member credits: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrCreditLimitExceeded
	}
	return nil
}

// SaveOrgFilters stores the last filters used by the organization.
func (r *PGXOrgRepository) SaveOrgFilters(ctx context.Context, orgID uuid.UUID, filters entity.EnrichmentFilters) error {
	payload, err := json.Marshal(filters.Normalized())
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}
	cmd, err := r.pool.Exec(ctx, `UPDATE organizations SET last_enrichment_filters = $2, updated_at = NOW() WHERE id = $1`, orgID, payload)
	if err != nil {
		return fmt.Errorf("save org filters: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveICPFilters stores filters on an ICP of the organization.
func (r *PGXOrgRepository) SaveICPFilters(ctx context.Context, orgID, icpID uuid.UUID, filters entity.EnrichmentFilters) error {
	payload, err := json.Marshal(filters.Normalized())
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}
	cmd, err := r.pool.Exec(ctx, `UPDATE icps SET enrichment_filters = $3, updated_at = NOW() WHERE org_id = $1 AND id = $2`, orgID, icpID, payload)
	if err != nil {
		return fmt.Errorf("save icp filters: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PromoteToLead creates the lead for an org employee and shortlists it.
// Promoting twice returns the existing lead.
func (r *PGXOrgRepository) PromoteToLead(ctx context.Context, orgID, employeeID uuid.UUID) (*entity.Lead, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start promote tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var companyID uuid.UUID
	if err := tx.QueryRow(ctx, `
        UPDATE org_employees SET is_shortlisted = TRUE
        WHERE org_id = $1 AND id = $2
        RETURNING company_id
    `, orgID, employeeID).Scan(&companyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("shortlist org employee: %w", err)
	}

	var lead entity.Lead
	err = tx.QueryRow(ctx, `
        INSERT INTO leads (org_id, org_employee_id, company_id, status)
        VALUES ($1, $2, $3, 'new')
        ON CONFLICT (org_employee_id) DO NOTHING
        RETURNING id, org_id, org_employee_id, company_id, status, created_at
    `, orgID, employeeID, companyID).Scan(&lead.ID, &lead.OrgID, &lead.OrgEmployeeID, &lead.CompanyID, &lead.Status, &lead.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx, selectLeadByEmployeeSQL, orgID, employeeID).
			Scan(&lead.ID, &lead.OrgID, &lead.OrgEmployeeID, &lead.CompanyID, &lead.Status, &lead.CreatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit promote tx: %w", err)
	}
	return &lead, nil
}

const selectLeadByEmployeeSQL = `
        SELECT id, org_id, org_employee_id, company_id, status, created_at
        FROM leads WHERE org_id = $1 AND org_employee_id = $2
    `

func scanOrgCompany(row pgx.Row, company *entity.OrgCompany) error {
	return row.Scan(
		&company.ID,
		&company.OrgID,
		&company.ICPID,
		&company.Name,
		&company.Domain,
		&company.LinkedinURL,
		&company.CreatedAt,
	)
}

func collectOrgCompanies(rows pgx.Rows) ([]entity.OrgCompany, error) {
	defer rows.Close()

	var companies []entity.OrgCompany
	for rows.Next() {
		var company entity.OrgCompany
		if err := scanOrgCompany(rows, &company); err != nil {
			return nil, fmt.Errorf("scan org company: %w", err)
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate org companies: %w", err)
	}
	return companies, nil
}

var _ OrgRepository = (*PGXOrgRepository)(nil)
