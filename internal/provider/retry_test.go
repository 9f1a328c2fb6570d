package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	errs  []error
	calls int
}

func (s *scriptedProvider) SearchPeopleAtCompany(ctx context.Context, params SearchParams) ([]Person, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	return []Person{{ID: "p-1"}}, nil
}

func TestWithRetry_RetriesTransient(t *testing.T) {
	inner := &scriptedProvider{errs: []error{
		fmt.Errorf("%w: status 503", ErrTransient),
		fmt.Errorf("%w: status 429", ErrTransient),
	}}
	p := WithRetry(inner, 3, time.Millisecond)

	people, err := p.SearchPeopleAtCompany(context.Background(), SearchParams{Domain: "acme.com"})
	require.NoError(t, err)
	assert.Len(t, people, 1)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	transient := fmt.Errorf("%w: status 503", ErrTransient)
	inner := &scriptedProvider{errs: []error{transient, transient, transient, transient}}
	p := WithRetry(inner, 3, time.Millisecond)

	_, err := p.SearchPeopleAtCompany(context.Background(), SearchParams{Domain: "acme.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient))
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetry_DoesNotRetryRejected(t *testing.T) {
	inner := &scriptedProvider{errs: []error{fmt.Errorf("%w: status 401", ErrRejected)}}
	p := WithRetry(inner, 5, time.Millisecond)

	_, err := p.SearchPeopleAtCompany(context.Background(), SearchParams{Domain: "acme.com"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1, inner.calls)
}

func TestWithRetry_SingleAttemptIsPassthrough(t *testing.T) {
	inner := &scriptedProvider{}
	assert.Same(t, Provider(inner), WithRetry(inner, 1, time.Second))
}
