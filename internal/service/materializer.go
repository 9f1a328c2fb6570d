package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/repository"
)

const provenanceGlobalCache = "global_cache"

// MaterializeInput is one company's worth of cached employees to copy into an organization.
type MaterializeInput struct {
	OrgID     uuid.UUID
	MemberID  string
	Company   entity.OrgCompany
	Employees []entity.GlobalEmployee
	CacheHit  bool
}

// MaterializeResult counts copied and skipped rows.
type MaterializeResult struct {
	Created int
	Skipped int
}

// MaterializePlan splits cached employees into rows new to the organization
// and rows it already holds.
type MaterializePlan struct {
	New          []entity.GlobalEmployee
	AlreadyInOrg int
}

// Materializer copies global employees into an organization.
type Materializer struct {
	store        OrgStore
	defaultLimit int
	now          func() time.Time
}

// NewMaterializer wires a materializer. defaultLimit seeds the credit row of an
// organization charged for the first time.
func NewMaterializer(store OrgStore, defaultLimit int, now func() time.Time) *Materializer {
	if now == nil {
		now = time.Now
	}
	return &Materializer{store: store, defaultLimit: defaultLimit, now: now}
}

// Plan computes which employees would be new for the company, deduping
// against existing org rows and within the batch.
func (m *Materializer) Plan(ctx context.Context, orgID, companyID uuid.UUID, employees []entity.GlobalEmployee) (MaterializePlan, error) {
	existing, err := m.store.ExistingDedupeKeys(ctx, orgID, companyID)
	if err != nil {
		return MaterializePlan{}, fmt.Errorf("read existing org employees: %w", err)
	}

	var plan MaterializePlan
	batch := make(map[string]struct{}, len(employees))
	for _, employee := range employees {
		key := repository.DedupeKey(employee.Email, employee.FirstName, employee.LastName)
		if _, ok := existing[key]; ok {
			plan.AlreadyInOrg++
			continue
		}
		if _, ok := batch[key]; ok {
			continue
		}
		batch[key] = struct{}{}
		plan.New = append(plan.New, employee)
	}
	return plan, nil
}

// Materialize copies new employees into the organization with provenance and
// charges one credit per inserted row in the same transaction. Duplicates are
// skipped and never charged, so repeating a call is harmless.
func (m *Materializer) Materialize(ctx context.Context, in MaterializeInput) (MaterializeResult, error) {
	plan, err := m.Plan(ctx, in.OrgID, in.Company.ID, in.Employees)
	if err != nil {
		return MaterializeResult{}, err
	}
	if len(plan.New) == 0 {
		return MaterializeResult{Skipped: len(in.Employees)}, nil
	}

	enrichedAt := m.now().UTC()
	rows := make([]entity.OrgEmployee, 0, len(plan.New))
	for _, employee := range plan.New {
		rows = append(rows, toOrgEmployee(in, employee, enrichedAt))
	}

	inserted, err := m.store.InsertEmployeesAndCharge(ctx, repository.MaterializeBatch{
		OrgID:               in.OrgID,
		MemberID:            in.MemberID,
		CompanyID:           in.Company.ID,
		DefaultCreditsLimit: m.defaultLimit,
		Employees:           rows,
	})
	if err != nil {
		if errors.Is(err, repository.ErrCreditLimitExceeded) {
			return MaterializeResult{}, &InsufficientCreditsError{Requested: len(rows)}
		}
		return MaterializeResult{}, fmt.Errorf("materialize employees: %w", err)
	}

	return MaterializeResult{
		Created: inserted,
		Skipped: len(in.Employees) - inserted,
	}, nil
}

func toOrgEmployee(in MaterializeInput, employee entity.GlobalEmployee, enrichedAt time.Time) entity.OrgEmployee {
	metadata := map[string]any{
		"source":           provenanceGlobalCache,
		"globalEmployeeId": employee.ID.String(),
		"enrichedAt":       enrichedAt.Format(time.RFC3339),
		"cacheHit":         in.CacheHit,
	}
	if score, ok := employee.Metadata["contactScore"]; ok {
		metadata["contactScore"] = score
	}
	if departments := employee.Departments(); len(departments) > 0 {
		metadata["departments"] = departments
	}

	var globalID *uuid.UUID
	if employee.ID != uuid.Nil {
		id := employee.ID
		globalID = &id
	}

	return entity.OrgEmployee{
		OrgID:            in.OrgID,
		CompanyID:        in.Company.ID,
		GlobalEmployeeID: globalID,
		FirstName:        employee.FirstName,
		LastName:         employee.LastName,
		Email:            employee.Email,
		Phone:            employee.Phone,
		JobTitle:         employee.JobTitle,
		LinkedinURL:      employee.LinkedinURL,
		Location:         employee.Location,
		Seniority:        employee.Seniority,
		Department:       employee.Department,
		Metadata:         metadata,
	}
}
