package backoff

import (
	"context"
	"errors"
	"time"
)

// Policy bounds a retry loop: at most MaxAttempts calls, separated by
// Strategy delays.
type Policy struct {
	MaxAttempts int
	Strategy    Strategy
}

// DefaultPolicy is the transient retry applied to workflow run-steps.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Strategy:    NewExponentialWithJitter(250*time.Millisecond, 5*time.Second),
	}
}

// NoRetry runs the function exactly once.
func NoRetry() Policy { return Policy{MaxAttempts: 1} }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Retry returns it at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry calls fn until it succeeds, returns a permanent error, the
// attempts are spent, or ctx is done. It returns the last error seen.
// onRetry, when non-nil, is called before each wait.
func (p Policy) Retry(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if IsPermanent(err) || attempt == attempts {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		var delay time.Duration
		if p.Strategy != nil {
			delay = p.Strategy.Delay(attempt)
		}
		if delay <= 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return err
			}
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}
