// Package backoff spaces out retries. A Strategy turns an attempt
// number into a delay; a Policy retries a function in-process under a
// Strategy. Both are safe for concurrent use.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Strategy returns the delay before retry attempt n, where attempt 1 is
// the first retry after the initial failure.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(attempt int) time.Duration

// Delay calls f(attempt).
func (f StrategyFunc) Delay(attempt int) time.Duration { return f(attempt) }

// NewConstant waits interval before every retry.
func NewConstant(interval time.Duration) Strategy {
	return StrategyFunc(func(int) time.Duration { return interval })
}

// NewExponential waits initial, then twice as long on each attempt, up
// to maxDelay.
func NewExponential(initial, maxDelay time.Duration) Strategy {
	return StrategyFunc(func(attempt int) time.Duration {
		return doubling(initial, maxDelay, attempt)
	})
}

// NewExponentialWithJitter draws each delay uniformly from zero up to
// what NewExponential would wait. Wake jobs that failed together then
// retry spread out instead of in lockstep.
func NewExponentialWithJitter(initial, maxDelay time.Duration) Strategy {
	return StrategyFunc(func(attempt int) time.Duration {
		ceiling := doubling(initial, maxDelay, attempt)
		if ceiling <= 0 {
			return 0
		}
		return rand.N(ceiling + 1) //nolint:gosec // jitter does not need crypto rand
	})
}

func doubling(initial, maxDelay time.Duration, attempt int) time.Duration {
	d := initial
	for i := 1; i < attempt; i++ {
		if maxDelay > 0 && d >= maxDelay {
			break
		}
		d *= 2
	}
	if maxDelay > 0 && d > maxDelay {
		d = maxDelay
	}
	return d
}

// DefaultStrategy is the retry spacing of timer jobs: jittered doubling
// from 1s up to 1m.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(time.Second, time.Minute)
}
