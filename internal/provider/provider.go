package provider

import (
	"context"
	"errors"
)

var (
	// ErrTransient marks failures worth retrying later: network errors, throttling, 5xx.
	ErrTransient = errors.New("provider temporarily unavailable")
	// ErrRejected marks requests the provider refused outright.
	ErrRejected = errors.New("provider rejected request")
)

// Person is a single record returned by the people-search provider.
type Person struct {
	ID                      string
	FirstName               string
	LastName                string
	Email                   string
	Phone                   string
	Title                   string
	LinkedinURL             string
	City                    string
	State                   string
	Country                 string
	Seniority               string
	Departments             []string
	OrganizationName        string
	OrganizationLinkedinURL string
}

// SearchParams scopes a people search to one company domain.
type SearchParams struct {
	Domain      string
	Titles      []string
	Seniorities []string
	MaxPages    int
	FetchAll    bool
}

// Provider searches people employed at a company. Zero matches is not an error.
type Provider interface {
	SearchPeopleAtCompany(ctx context.Context, params SearchParams) ([]Person, error)
}
