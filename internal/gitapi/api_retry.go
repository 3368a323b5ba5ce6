package gitapi

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds the retry-with-backoff behavior of one call. The delay
// starts at InitialDelay and doubles each attempt.
type RetryPolicy struct {
	Enabled      bool
	MaxAttempts  int
	InitialDelay time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	Enabled:      true,
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
}

// CallOption overrides the client's default retry policy for one call.
type CallOption func(*RetryPolicy)

func WithRetry(enabled bool, maxAttempts int) CallOption {
	return func(p *RetryPolicy) {
		p.Enabled = enabled
		if maxAttempts > 0 {
			p.MaxAttempts = maxAttempts
		}
	}
}

func (c *Client) callPolicy(opts []CallOption) RetryPolicy {
	policy := c.retry
	for _, opt := range opts {
		opt(&policy)
	}
	return policy
}

// shouldRetry decides whether a failed attempt is worth repeating.
// Validation failures cannot succeed by repetition and auth failures need
// operator action, so both surface immediately. Everything else, including
// transport errors that never produced a response, is retried.
func shouldRetry(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return !re.IsValidation() && !re.IsAuth()
	}
	return true
}

// retryDo runs fn under the given policy. After the attempt budget is
// exhausted the last error is surfaced unchanged.
func retryDo[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	var zero T

	if !policy.Enabled {
		return fn()
	}

	delay := policy.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		val, err := fn()
		if err == nil {
			return val, nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return zero, lastErr
}
