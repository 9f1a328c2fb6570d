package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/idtoken"
)

const (
	searchPath      = "/v1/mixed_people/search"
	defaultPerPage  = 100
	maxFetchAllPage = 50
)

// Client calls the people-search API over HTTP.
type Client struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	perPage  int
	maxPages int
	limiter  *rate.Limiter
}

// Option configures optional Client settings.
type Option func(*Client)

// WithPerPage overrides the page size requested from the provider.
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithMaxPages overrides how many pages are read when the caller does not ask for everything.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithRateLimit paces outgoing page requests.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// NewClient builds a provider client. When client is nil and useIDToken is set,
// an ID token client scoped to baseURL is attempted before falling back to a plain client.
func NewClient(client *http.Client, baseURL, apiKey string, useIDToken bool, opts ...Option) *Client {
	if baseURL == "" {
		panic("provider baseURL must not be empty")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
		if useIDToken {
			if idc, err := idtoken.NewClient(context.Background(), baseURL); err == nil {
				client = idc
			}
		}
	}
	c := &Client{
		client:   client,
		baseURL:  baseURL,
		apiKey:   apiKey,
		perPage:  defaultPerPage,
		maxPages: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	Domains     []string `json:"q_organization_domains_list"`
	Titles      []string `json:"person_titles,omitempty"`
	Seniorities []string `json:"person_seniorities,omitempty"`
	Page        int      `json:"page"`
	PerPage     int      `json:"per_page"`
}

type searchResponse struct {
	People     []apiPerson `json:"people"`
	Pagination struct {
		Page         int `json:"page"`
		PerPage      int `json:"per_page"`
		TotalEntries int `json:"total_entries"`
		TotalPages   int `json:"total_pages"`
	} `json:"pagination"`
}

type apiPerson struct {
	ID           string   `json:"id"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Email        string   `json:"email"`
	Title        string   `json:"title"`
	LinkedinURL  string   `json:"linkedin_url"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Country      string   `json:"country"`
	Seniority    string   `json:"seniority"`
	Departments  []string `json:"departments"`
	PhoneNumbers []struct {
		RawNumber       string `json:"raw_number"`
		SanitizedNumber string `json:"sanitized_number"`
	} `json:"phone_numbers"`
	Organization *struct {
		Name        string `json:"name"`
		LinkedinURL string `json:"linkedin_url"`
	} `json:"organization"`
}

// SearchPeopleAtCompany pages through the provider results for a domain.
func (c *Client) SearchPeopleAtCompany(ctx context.Context, params SearchParams) ([]Person, error) {
	domain := strings.TrimSpace(params.Domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrRejected)
	}

	maxPages := c.maxPages
	if params.MaxPages > 0 {
		maxPages = params.MaxPages
	}
	if params.FetchAll {
		maxPages = maxFetchAllPage
	}

	var people []Person
	for page := 1; page <= maxPages; page++ {
		resp, err := c.searchPage(ctx, searchRequest{
			Domains:     []string{domain},
			Titles:      params.Titles,
			Seniorities: params.Seniorities,
			Page:        page,
			PerPage:     c.perPage,
		})
		if err != nil {
			return nil, err
		}
		for _, p := range resp.People {
			people = append(people, p.toPerson())
		}
		if len(resp.People) == 0 || page >= resp.Pagination.TotalPages {
			break
		}
	}
	return people, nil
}

func (c *Client) searchPage(ctx context.Context, payload searchRequest) (*searchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for provider rate limit: %w", err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("search people: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorBody(resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrTransient, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, msg)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode search response: %v", ErrTransient, err)
	}
	return &decoded, nil
}

func (p apiPerson) toPerson() Person {
	out := Person{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		Title:       p.Title,
		LinkedinURL: p.LinkedinURL,
		City:        p.City,
		State:       p.State,
		Country:     p.Country,
		Seniority:   p.Seniority,
		Departments: append([]string(nil), p.Departments...),
	}
	for _, n := range p.PhoneNumbers {
		if n.SanitizedNumber != "" {
			out.Phone = n.SanitizedNumber
			break
		}
		if n.RawNumber != "" && out.Phone == "" {
			out.Phone = n.RawNumber
		}
	}
	if p.Organization != nil {
		out.OrganizationName = p.Organization.Name
		out.OrganizationLinkedinURL = p.Organization.LinkedinURL
	}
	return out
}

func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "unknown error"
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(data))
}

var _ Provider = (*Client)(nil)
