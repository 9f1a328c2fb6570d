package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/leads-enrichment/api/internal/entity"
)

// GlobalCacheRepository persists the platform-wide company and employee cache.
type GlobalCacheRepository interface {
	FindCompanyByDomain(ctx context.Context, domain string) (*entity.GlobalCompany, error)
	FindEmployees(ctx context.Context, domain string, filters entity.EnrichmentFilters) ([]entity.GlobalEmployee, error)
	CountEmployees(ctx context.Context, domain string) (int, error)
	UpsertEmployees(ctx context.Context, employees []entity.GlobalEmployee) ([]entity.GlobalEmployee, error)
	UpsertCompany(ctx context.Context, input CompanyUpsert) (*entity.GlobalCompany, error)
}

// CompanyUpsert describes a cache write for a company after a provider fetch.
// EmployeesCount is nil for filtered fetches so the stored count survives.
type CompanyUpsert struct {
	Domain         string
	Name           string
	LinkedinURL    *string
	FetchedAt      time.Time
	EmployeesCount *int
	Metadata       map[string]any
}

// PGXGlobalCacheRepository implements GlobalCacheRepository using pgx.
type PGXGlobalCacheRepository struct {
	pool pgxPool
}

// NewPGXGlobalCacheRepository wires a pgx backed cache repository.
func NewPGXGlobalCacheRepository(pool *pgxpool.Pool) *PGXGlobalCacheRepository {
	return &PGXGlobalCacheRepository{pool: pool}
}

const globalCompanyColumns = `
    id, domain, name, linkedin_url, industry, size, location, description, logo_url,
    employees_count, employees_last_fetched_at, employees_counted_at, stale_after_days,
    enrichment_source, metadata, created_at, updated_at`

const globalEmployeeColumns = `
    id, apollo_id, company_domain, company_name, company_linkedin_url, first_name, last_name,
    email, phone, job_title, linkedin_url, location, seniority, department, metadata, fetched_at`

// FindCompanyByDomain returns the cached company for a lower-cased domain.
func (r *PGXGlobalCacheRepository) FindCompanyByDomain(ctx context.Context, domain string) (*entity.GlobalCompany, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+globalCompanyColumns+` FROM global_companies WHERE domain = $1`, strings.ToLower(domain))

	company, err := scanGlobalCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query global company: %w", err)
	}
	return company, nil
}

// FindEmployees lists cached employees for a domain. Titles match as
// case-insensitive substrings (any of), seniorities exactly (any of).
func (r *PGXGlobalCacheRepository) FindEmployees(ctx context.Context, domain string, filters entity.EnrichmentFilters) ([]entity.GlobalEmployee, error) {
	filters = filters.Normalized()

	query := strings.Builder{}
	query.WriteString(`SELECT ` + globalEmployeeColumns + ` FROM global_employees WHERE company_domain = $1`)
	args := []any{strings.ToLower(domain)}

	if len(filters.Titles) > 0 {
		args = append(args, likePatterns(filters.Titles))
		query.WriteString(fmt.Sprintf(" AND job_title ILIKE ANY ($%d)", len(args)))
	}
	if len(filters.Seniorities) > 0 {
		args = append(args, filters.Seniorities)
		query.WriteString(fmt.Sprintf(" AND seniority = ANY ($%d)", len(args)))
	}
	query.WriteString(" ORDER BY last_name, first_name, apollo_id")

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list global employees: %w", err)
	}
	defer rows.Close()

	var employees []entity.GlobalEmployee
	for rows.Next() {
		employee, err := scanGlobalEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan global employee: %w", err)
		}
		employees = append(employees, *employee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate global employees: %w", err)
	}
	return employees, nil
}

// CountEmployees returns how many employees are cached for a domain.
func (r *PGXGlobalCacheRepository) CountEmployees(ctx context.Context, domain string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM global_employees WHERE company_domain = $1`, strings.ToLower(domain)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count global employees: %w", err)
	}
	return count, nil
}

const upsertGlobalEmployeeSQL = `
        INSERT INTO global_employees (
            apollo_id, company_domain, company_name, company_linkedin_url, first_name, last_name,
            email, phone, job_title, linkedin_url, location, seniority, department, metadata, fetched_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        ON CONFLICT (apollo_id) DO UPDATE SET
            company_domain = EXCLUDED.company_domain,
            company_name = EXCLUDED.company_name,
            company_linkedin_url = COALESCE(EXCLUDED.company_linkedin_url, global_employees.company_linkedin_url),
            first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            email = EXCLUDED.email,
            phone = EXCLUDED.phone,
            job_title = EXCLUDED.job_title,
            linkedin_url = COALESCE(EXCLUDED.linkedin_url, global_employees.linkedin_url),
            location = EXCLUDED.location,
            seniority = EXCLUDED.seniority,
            department = EXCLUDED.department,
            metadata = global_employees.metadata || EXCLUDED.metadata,
            fetched_at = EXCLUDED.fetched_at
        RETURNING id, fetched_at;
    `

// UpsertEmployees writes provider people keyed by provider identity and returns
// them with their stored ids.
func (r *PGXGlobalCacheRepository) UpsertEmployees(ctx context.Context, employees []entity.GlobalEmployee) ([]entity.GlobalEmployee, error) {
	if len(employees) == 0 {
		return nil, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start employee upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stored := make([]entity.GlobalEmployee, 0, len(employees))
	for _, employee := range employees {
		if strings.TrimSpace(employee.ApolloID) == "" {
			return nil, fmt.Errorf("upsert global employee: provider id is required")
		}
		metadata, err := jsonbOrEmpty(employee.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode employee metadata: %w", err)
		}
		fetchedAt := employee.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = time.Now().UTC()
		}

		row := tx.QueryRow(ctx, upsertGlobalEmployeeSQL,
			employee.ApolloID,
			strings.ToLower(employee.CompanyDomain),
			employee.CompanyName,
			stringOrNil(employee.CompanyLinkedinURL),
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
			fetchedAt,
		)
		if err := row.Scan(&employee.ID, &employee.FetchedAt); err != nil {
			return nil, fmt.Errorf("upsert global employee %q: %w", employee.ApolloID, err)
		}
		stored = append(stored, employee)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit employee upsert tx: %w", err)
	}
	return stored, nil
}

// UpsertCompany records a fetch for a domain. The employee count and its
// timestamp are only replaced when input.EmployeesCount is set.
func (r *PGXGlobalCacheRepository) UpsertCompany(ctx context.Context, input CompanyUpsert) (*entity.GlobalCompany, error) {
	domain := strings.ToLower(strings.TrimSpace(input.Domain))
	if domain == "" {
		return nil, fmt.Errorf("upsert global company: domain is required")
	}
	metadata, err := jsonbOrEmpty(input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode company metadata: %w", err)
	}
	fetchedAt := input.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	var countedAt any
	if input.EmployeesCount != nil {
		countedAt = fetchedAt
	}

	row := r.pool.QueryRow(ctx, `
        INSERT INTO global_companies (
            domain, name, linkedin_url, employees_count, employees_last_fetched_at,
            employees_counted_at, metadata, updated_at
        ) VALUES ($1, $2, $3, COALESCE($4::int, 0), $5, $6, $7, NOW())
        ON CONFLICT (domain) DO UPDATE SET
            name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE global_companies.name END,
            linkedin_url = COALESCE(EXCLUDED.linkedin_url, global_companies.linkedin_url),
            employees_count = CASE WHEN $4::int IS NULL THEN global_companies.employees_count ELSE EXCLUDED.employees_count END,
            employees_last_fetched_at = EXCLUDED.employees_last_fetched_at,
            employees_counted_at = COALESCE(EXCLUDED.employees_counted_at, global_companies.employees_counted_at),
            metadata = global_companies.metadata || EXCLUDED.metadata,
            updated_at = NOW()
        RETURNING `+globalCompanyColumns,
		domain,
		strings.TrimSpace(input.Name),
		stringOrNil(input.LinkedinURL),
		intOrNil(input.EmployeesCount),
		fetchedAt,
		countedAt,
		metadata,
	)

	company, err := scanGlobalCompany(row)
	if err != nil {
		return nil, fmt.Errorf("upsert global company %q: %w", domain, err)
	}
	return company, nil
}

func scanGlobalCompany(row pgx.Row) (*entity.GlobalCompany, error) {
	var (
		company  entity.GlobalCompany
		metadata []byte
	)
	if err := row.Scan(
		&company.ID,
		&company.Domain,
		&company.Name,
		&company.LinkedinURL,
		&company.Industry,
		&company.Size,
		&company.Location,
		&company.Description,
		&company.LogoURL,
		&company.EmployeesCount,
		&company.EmployeesLastFetchedAt,
		&company.EmployeesCountedAt,
		&company.StaleAfterDays,
		&company.EnrichmentSource,
		&metadata,
		&company.CreatedAt,
		&company.UpdatedAt,
	); err != nil {
		return nil, err
	}
	company.Metadata = decodeMetadata(metadata)
	return &company, nil
}

func scanGlobalEmployee(row pgx.Row) (*entity.GlobalEmployee, error) {
	var (
		employee entity.GlobalEmployee
		metadata []byte
	)
	if err := row.Scan(
		&employee.ID,
		&employee.ApolloID,
		&employee.CompanyDomain,
		&employee.CompanyName,
		&employee.CompanyLinkedinURL,
		&employee.FirstName,
		&employee.LastName,
		&employee.Email,
		&employee.Phone,
		&employee.JobTitle,
		&employee.LinkedinURL,
		&employee.Location,
		&employee.Seniority,
		&employee.Department,
		&metadata,
		&employee.FetchedAt,
	); err != nil {
		return nil, err
	}
	employee.Metadata = decodeMetadata(metadata)
	return &employee, nil
}

var _ GlobalCacheRepository = (*PGXGlobalCacheRepository)(nil)
