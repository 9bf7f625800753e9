package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how a unit of work is re-run.
type Policy struct {
	// Retries is the number of re-runs after the first attempt.
	Retries int
	// Initial is the first backoff interval; it grows exponentially.
	Initial time.Duration
	// MaxInterval caps a single wait.
	MaxInterval time.Duration
}

// DefaultPolicy re-runs a failed unit of work three times.
func DefaultPolicy() Policy {
	return Policy{Retries: 3, Initial: 50 * time.Millisecond, MaxInterval: time.Second}
}

// Permanent marks err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs work until it succeeds, returns a Permanent error, the context is
// done, or the retry budget is spent. The last error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, work func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	// WithMaxRetries treats zero as unlimited
	if p.Retries <= 0 {
		res, err := work(ctx)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return res, perm.Err
		}
		return res, err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Retries)), ctx)
	return backoff.RetryWithData(func() (T, error) {
		return work(ctx)
	}, bo)
}
