package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/provider"
	"github.com/octobees/leads-enrichment/api/internal/repository"
)

// fakeStore is an in-memory CacheStore, OrgStore and CreditStore.
type fakeStore struct {
	mu sync.Mutex

	companies    map[string]*entity.GlobalCompany
	employees    map[string]entity.GlobalEmployee
	orgCompanies map[uuid.UUID]entity.OrgCompany
	icps         map[uuid.UUID]uuid.UUID
	orgEmployees []entity.OrgEmployee
	usage        map[uuid.UUID]*entity.CreditUsage
	members      map[string]*entity.MemberCreditUsage
	txns         []entity.EnrichmentTransaction
	orgFilters   map[uuid.UUID]entity.EnrichmentFilters
	icpFilters   map[uuid.UUID]entity.EnrichmentFilters
	leads        map[uuid.UUID]entity.Lead

	upsertCompanyCalls int
	findCompanyCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		companies:    map[string]*entity.GlobalCompany{},
		employees:    map[string]entity.GlobalEmployee{},
		orgCompanies: map[uuid.UUID]entity.OrgCompany{},
		icps:         map[uuid.UUID]uuid.UUID{},
		usage:        map[uuid.UUID]*entity.CreditUsage{},
		members:      map[string]*entity.MemberCreditUsage{},
		orgFilters:   map[uuid.UUID]entity.EnrichmentFilters{},
		icpFilters:   map[uuid.UUID]entity.EnrichmentFilters{},
		leads:        map[uuid.UUID]entity.Lead{},
	}
}

func (s *fakeStore) FindCompanyByDomain(ctx context.Context, domain string) (*entity.GlobalCompany, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCompanyCalls++
	company, ok := s.companies[domain]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *company
	return &copied, nil
}

func (s *fakeStore) FindEmployees(ctx context.Context, domain string, filters entity.EnrichmentFilters) ([]entity.GlobalEmployee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.GlobalEmployee
	for _, e := range s.employees {
		if e.CompanyDomain == domain && filters.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApolloID < out[j].ApolloID })
	return out, nil
}

func (s *fakeStore) CountEmployees(ctx context.Context, domain string) (int, error) {
	employees, _ := s.FindEmployees(ctx, domain, entity.EnrichmentFilters{})
	return len(employees), nil
}

func (s *fakeStore) UpsertEmployees(ctx context.Context, employees []entity.GlobalEmployee) ([]entity.GlobalEmployee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]entity.GlobalEmployee, 0, len(employees))
	for _, e := range employees {
		if existing, ok := s.employees[e.ApolloID]; ok {
			e.ID = existing.ID
		} else {
			e.ID = uuid.New()
		}
		s.employees[e.ApolloID] = e
		stored = append(stored, e)
	}
	return stored, nil
}

func (s *fakeStore) UpsertCompany(ctx context.Context, input repository.CompanyUpsert) (*entity.GlobalCompany, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCompanyCalls++
	company, ok := s.companies[input.Domain]
	if !ok {
		company = &entity.GlobalCompany{ID: uuid.New(), Domain: input.Domain}
		s.companies[input.Domain] = company
	}
	if input.Name != "" {
		company.Name = input.Name
	}
	fetchedAt := input.FetchedAt
	company.EmployeesLastFetchedAt = &fetchedAt
	if input.EmployeesCount != nil {
		company.EmployeesCount = *input.EmployeesCount
		company.EmployeesCountedAt = &fetchedAt
	}
	copied := *company
	return &copied, nil
}

func (s *fakeStore) GetCompany(ctx context.Context, orgID, companyID uuid.UUID) (*entity.OrgCompany, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	company, ok := s.orgCompanies[companyID]
	if !ok || company.OrgID != orgID {
		return nil, repository.ErrNotFound
	}
	return &company, nil
}

func (s *fakeStore) ListCompanies(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]entity.OrgCompany, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.OrgCompany
	for _, id := range ids {
		if company, ok := s.orgCompanies[id]; ok && company.OrgID == orgID {
			out = append(out, company)
		}
	}
	return out, nil
}

func (s *fakeStore) ListICPCompanies(ctx context.Context, orgID, icpID uuid.UUID) ([]entity.OrgCompany, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.icps[icpID]
	if !ok || owner != orgID {
		return nil, repository.ErrNotFound
	}
	var out []entity.OrgCompany
	for _, company := range s.orgCompanies {
		if company.ICPID != nil && *company.ICPID == icpID {
			out = append(out, company)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) ExistingDedupeKeys(ctx context.Context, orgID, companyID uuid.UUID) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysLocked(orgID, companyID), nil
}

func (s *fakeStore) keysLocked(orgID, companyID uuid.UUID) map[string]struct{} {
	keys := map[string]struct{}{}
	for _, e := range s.orgEmployees {
		if e.OrgID == orgID && e.CompanyID == companyID {
			keys[repository.DedupeKey(e.Email, e.FirstName, e.LastName)] = struct{}{}
		}
	}
	return keys
}

func (s *fakeStore) InsertEmployeesAndCharge(ctx context.Context, batch repository.MaterializeBatch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.keysLocked(batch.OrgID, batch.CompanyID)
	var rows []entity.OrgEmployee
	for _, e := range batch.Employees {
		key := repository.DedupeKey(e.Email, e.FirstName, e.LastName)
		if _, dup := keys[key]; dup {
			continue
		}
		keys[key] = struct{}{}
		e.ID = uuid.New()
		e.OrgID = batch.OrgID
		e.CompanyID = batch.CompanyID
		rows = append(rows, e)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	usage := s.usageLocked(batch.OrgID, batch.DefaultCreditsLimit)
	if usage.CreditsUsed+len(rows) > usage.CreditsLimit {
		return 0, repository.ErrCreditLimitExceeded
	}
	if batch.MemberID != "" {
		member := s.members[batch.MemberID]
		if member != nil && member.CreditsLimit != nil && member.CreditsUsed+len(rows) > *member.CreditsLimit {
			return 0, repository.ErrCreditLimitExceeded
		}
		if member == nil {
			member = &entity.MemberCreditUsage{OrgID: batch.OrgID, MemberID: batch.MemberID}
			s.members[batch.MemberID] = member
		}
		member.CreditsUsed += len(rows)
	}
	usage.CreditsUsed += len(rows)
	s.orgEmployees = append(s.orgEmployees, rows...)
	return len(rows), nil
}

func (s *fakeStore) usageLocked(orgID uuid.UUID, defaultLimit int) *entity.CreditUsage {
	usage, ok := s.usage[orgID]
	if !ok {
		if defaultLimit <= 0 {
			defaultLimit = repository.DefaultCreditsLimit
		}
		usage = &entity.CreditUsage{OrgID: orgID, CreditsLimit: defaultLimit}
		s.usage[orgID] = usage
	}
	return usage
}

func (s *fakeStore) SaveOrgFilters(ctx context.Context, orgID uuid.UUID, filters entity.EnrichmentFilters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgFilters[orgID] = filters
	return nil
}

func (s *fakeStore) SaveICPFilters(ctx context.Context, orgID, icpID uuid.UUID, filters entity.EnrichmentFilters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.icps[icpID]; !ok || owner != orgID {
		return repository.ErrNotFound
	}
	s.icpFilters[icpID] = filters
	return nil
}

func (s *fakeStore) PromoteToLead(ctx context.Context, orgID, employeeID uuid.UUID) (*entity.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.orgEmployees {
		if e.ID != employeeID || e.OrgID != orgID {
			continue
		}
		s.orgEmployees[i].IsShortlisted = true
		if lead, ok := s.leads[employeeID]; ok {
			return &lead, nil
		}
		lead := entity.Lead{ID: uuid.New(), OrgID: orgID, OrgEmployeeID: employeeID, CompanyID: e.CompanyID, Status: "new", CreatedAt: time.Now()}
		s.leads[employeeID] = lead
		return &lead, nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) GetUsage(ctx context.Context, orgID uuid.UUID, defaultLimit int) (entity.CreditUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usage, ok := s.usage[orgID]; ok {
		return *usage, nil
	}
	return entity.CreditUsage{OrgID: orgID, CreditsLimit: defaultLimit}, nil
}

func (s *fakeStore) GetMemberUsage(ctx context.Context, orgID uuid.UUID, memberID string) (*entity.MemberCreditUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if member, ok := s.members[memberID]; ok {
		copied := *member
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) RecordTransaction(ctx context.Context, txn *entity.EnrichmentTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	txn.ID = uuid.New()
	s.txns = append(s.txns, *txn)
	return nil
}

func (s *fakeStore) findCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCompanyCalls
}

func (s *fakeStore) company(domain string) *entity.GlobalCompany {
	s.mu.Lock()
	defer s.mu.Unlock()
	company, ok := s.companies[domain]
	if !ok {
		return nil
	}
	copied := *company
	return &copied
}

func (s *fakeStore) transactions() []entity.EnrichmentTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.EnrichmentTransaction(nil), s.txns...)
}

func (s *fakeStore) orgRowCount(orgID uuid.UUID, companyID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.orgEmployees {
		if e.OrgID == orgID && e.CompanyID == companyID {
			n++
		}
	}
	return n
}

func (s *fakeStore) addCompany(orgID uuid.UUID, name, domain string) entity.OrgCompany {
	s.mu.Lock()
	defer s.mu.Unlock()
	company := entity.OrgCompany{ID: uuid.New(), OrgID: orgID, Name: name}
	if domain != "" {
		company.Domain = &domain
	}
	s.orgCompanies[company.ID] = company
	return company
}

func (s *fakeStore) setUsage(orgID uuid.UUID, used, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[orgID] = &entity.CreditUsage{OrgID: orgID, CreditsUsed: used, CreditsLimit: limit}
}

func (s *fakeStore) seedCompany(domain string, count int, fetchedAt time.Time, counted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	company := &entity.GlobalCompany{ID: uuid.New(), Domain: domain, EmployeesCount: count, EmployeesLastFetchedAt: &fetchedAt}
	if counted {
		company.EmployeesCountedAt = &fetchedAt
	}
	s.companies[domain] = company
}

func (s *fakeStore) seedEmployee(domain, id, first, last, title, seniority string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(first) + "@" + domain
	s.employees[id] = entity.GlobalEmployee{
		ID:            uuid.New(),
		ApolloID:      id,
		CompanyDomain: domain,
		FirstName:     first,
		LastName:      last,
		Email:         &email,
		JobTitle:      &title,
		Seniority:     &seniority,
	}
}

// fakeProvider serves canned people per domain and filters them like the vendor would.
type fakeProvider struct {
	mu     sync.Mutex
	people map[string][]provider.Person
	errs   map[string]error
	calls  map[string]int
	params []provider.SearchParams
	gate   chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		people: map[string][]provider.Person{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (p *fakeProvider) SearchPeopleAtCompany(ctx context.Context, params provider.SearchParams) ([]provider.Person, error) {
	p.mu.Lock()
	p.calls[params.Domain]++
	p.params = append(p.params, params)
	gate := p.gate
	people := p.people[params.Domain]
	err := p.errs[params.Domain]
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	filters := entity.EnrichmentFilters{Titles: params.Titles, Seniorities: params.Seniorities}
	var out []provider.Person
	for _, person := range people {
		title, seniority := person.Title, person.Seniority
		if filters.Matches(entity.GlobalEmployee{JobTitle: &title, Seniority: &seniority}) {
			out = append(out, person)
		}
	}
	return out, nil
}

func (p *fakeProvider) callCount(domain string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[domain]
}

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

// staff builds n people for a domain; the first one is the CTO.
func staff(domain string, n int) []provider.Person {
	people := make([]provider.Person, 0, n)
	for i := 0; i < n; i++ {
		title, seniority := "Software Engineer", "senior"
		if i == 0 {
			title, seniority = "CTO", "c_suite"
		}
		people = append(people, provider.Person{
			ID:        fmt.Sprintf("%s-%d", domain, i),
			FirstName: fmt.Sprintf("First%d", i),
			LastName:  fmt.Sprintf("Last%d", i),
			Email:     fmt.Sprintf("person%d@%s", i, domain),
			Title:     title,
			Seniority: seniority,
		})
	}
	return people
}

type harness struct {
	store    *fakeStore
	provider *fakeProvider
	now      time.Time
	cache    *EmployeeCache
	svc      *EnrichmentService
	orgID    uuid.UUID
}

func newHarness() *harness {
	h := &harness{
		store:    newFakeStore(),
		provider: newFakeProvider(),
		now:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		orgID:    uuid.New(),
	}
	clock := func() time.Time { return h.now }
	h.cache = NewEmployeeCache(h.store, h.provider, WithClock(clock), WithStaleAfterDays(30))
	ledger := NewCreditLedger(h.store, 30)
	materializer := NewMaterializer(h.store, 30, clock)
	h.svc = NewEnrichmentService(h.store, h.cache, ledger, materializer, WithBulkDelay(0))
	return h
}
