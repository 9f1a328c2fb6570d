package service

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"

	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/provider"
	"github.com/octobees/leads-enrichment/api/internal/service/scoring"
)

var (
	emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)
	idnaProfile  = idna.Lookup
)

const (
	trackingPrefix     = "utm_"
	defaultPhoneRegion = "US"
)

// NormalizeDomain reduces a website or domain input to its lower-cased ASCII
// host without scheme, "www." prefix, port or path. It returns "" for input
// that does not look like a domain.
func NormalizeDomain(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.Trim(u.Hostname(), ".")
	host = strings.TrimPrefix(host, "www.")
	if !isDomainValid(host) {
		return ""
	}
	ascii, err := idnaProfile.ToASCII(host)
	if err != nil {
		return ""
	}
	return ascii
}

// PersonNormalizer turns provider people into canonical cache rows.
type PersonNormalizer struct {
	DefaultRegion string
}

// NewPersonNormalizer builds a normalizer that parses national phone numbers
// in the given region.
func NewPersonNormalizer(defaultRegion string) *PersonNormalizer {
	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if region == "" {
		region = defaultPhoneRegion
	}
	return &PersonNormalizer{DefaultRegion: region}
}

// CompanyRef is the company context attached to every normalized employee.
type CompanyRef struct {
	Domain      string
	Name        string
	LinkedinURL string
}

// Normalize converts a provider person. People without a provider id are
// rejected since the cache is keyed on it.
func (n *PersonNormalizer) Normalize(company CompanyRef, person provider.Person, fetchedAt time.Time) (entity.GlobalEmployee, error) {
	id := strings.TrimSpace(person.ID)
	if id == "" {
		return entity.GlobalEmployee{}, errors.New("person has no provider id")
	}

	companyName := strings.TrimSpace(person.OrganizationName)
	if companyName == "" {
		companyName = strings.TrimSpace(company.Name)
	}
	companyLinkedin := cleanLinkedinURL(person.OrganizationLinkedinURL)
	if companyLinkedin == "" {
		companyLinkedin = cleanLinkedinURL(company.LinkedinURL)
	}

	employee := entity.GlobalEmployee{
		ApolloID:           id,
		CompanyDomain:      company.Domain,
		CompanyName:        companyName,
		CompanyLinkedinURL: optional(companyLinkedin),
		FirstName:          strings.TrimSpace(person.FirstName),
		LastName:           strings.TrimSpace(person.LastName),
		Email:              optional(cleanEmail(person.Email)),
		Phone:              optional(normalizePhone(person.Phone, n.DefaultRegion)),
		JobTitle:           optional(strings.TrimSpace(person.Title)),
		LinkedinURL:        optional(cleanLinkedinURL(person.LinkedinURL)),
		Location:           optional(joinLocation(person.City, person.State, person.Country)),
		Seniority:          optional(entity.NormalizeSeniority(person.Seniority)),
		FetchedAt:          fetchedAt,
	}

	departments := cleanDepartments(person.Departments)
	if len(departments) > 0 {
		employee.Department = optional(departments[0])
	}

	score := scoring.ComputeScore(scoring.ContactFeatures{
		Email:         deref(employee.Email),
		Phone:         deref(employee.Phone),
		LinkedinURL:   deref(employee.LinkedinURL),
		JobTitle:      deref(employee.JobTitle),
		Seniority:     deref(employee.Seniority),
		Department:    deref(employee.Department),
		Location:      deref(employee.Location),
		CompanyDomain: company.Domain,
	})
	employee.Metadata = map[string]any{
		"departments":  departments,
		"contactScore": score.Total,
	}
	return employee, nil
}

func cleanEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !emailPattern.MatchString(email) {
		return ""
	}
	parts := strings.SplitN(email, "@", 2)
	if !isDomainValid(parts[1]) {
		return ""
	}
	asciiDomain, err := idnaProfile.ToASCII(parts[1])
	if err != nil || asciiDomain == "" {
		return ""
	}
	return parts[0] + "@" + asciiDomain
}

func cleanLinkedinURL(raw string) string {
	u, err := sanitizeURL(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(strings.Trim(u.Hostname(), "."))
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return ""
	}
	stripTracking(u)
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/")
}

func cleanDepartments(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, raw := range values {
		v := strings.ToLower(strings.TrimSpace(raw))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func joinLocation(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func sanitizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, errors.New("invalid url")
	}
	u.Scheme = "https"
	return u, nil
}

func stripTracking(u *url.URL) {
	if u == nil {
		return
	}
	query := u.Query()
	changed := false
	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), trackingPrefix) {
			query.Del(key)
			changed = true
		}
	}
	if changed {
		u.RawQuery = query.Encode()
	}
}

func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if region == "" {
		region = defaultPhoneRegion
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

func isDomainValid(domain string) bool {
	if strings.Count(domain, ".") == 0 {
		return false
	}
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" || strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return false
		}
	}
	return true
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
