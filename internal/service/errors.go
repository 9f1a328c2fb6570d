package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a company, ICP or employee is not in the caller's organization.
	ErrNotFound = errors.New("not found")
	// ErrMissingDomain is returned when a company cannot be enriched because it has no domain.
	ErrMissingDomain = errors.New("company has no domain")
	// ErrInsufficientCredits is returned when an enrichment would exceed the credit balance.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrProviderFailure wraps errors raised by the people-search provider.
	ErrProviderFailure = errors.New("enrichment provider failure")
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// InsufficientCreditsError reports the shortfall of a refused enrichment.
type InsufficientCreditsError struct {
	Requested int
	Remaining int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: %d requested, %d remaining", e.Requested, e.Remaining)
}

// Is lets errors.Is match ErrInsufficientCredits.
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// Shortfall is how many credits are missing.
func (e *InsufficientCreditsError) Shortfall() int {
	if d := e.Requested - e.Remaining; d > 0 {
		return d
	}
	return 0
}
