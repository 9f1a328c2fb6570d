package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

type retryingProvider struct {
	next     Provider
	attempts int
	backoff  time.Duration
}

// WithRetry wraps p so transient failures are retried with exponential backoff,
// up to maxAttempts calls in total. Other errors return immediately.
func WithRetry(p Provider, maxAttempts int, backoff time.Duration) Provider {
	if maxAttempts <= 1 {
		return p
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &retryingProvider{next: p, attempts: maxAttempts, backoff: backoff}
}

func (r *retryingProvider) SearchPeopleAtCompany(ctx context.Context, params SearchParams) ([]Person, error) {
	b := retry.WithMaxRetries(uint64(r.attempts-1), retry.NewExponential(r.backoff))

	var people []Person
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		result, err := r.next.SearchPeopleAtCompany(ctx, params)
		if err != nil {
			if errors.Is(err, ErrTransient) {
				return retry.RetryableError(err)
			}
			return err
		}
		people = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return people, nil
}
