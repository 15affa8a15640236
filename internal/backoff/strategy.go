// Package backoff provides the delay calculators used by the retry policy.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before a retry attempt. Attempt numbering is
// zero-based: attempt 0 is the delay before the first retry.
type Strategy interface {
	Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration
}

// ExponentialJitter grows the delay geometrically and adds uniform jitter in
// [0, delay*jitter], capped at maxBackoff. This is the default strategy.
type ExponentialJitter struct{}

func (ExponentialJitter) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30 // overflow guard
	}

	delay := time.Duration(float64(initialBackoff) * Pow(multiplier, attempt))
	if delay < 0 || delay > maxBackoff {
		delay = maxBackoff
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		amount := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+amount > maxBackoff {
			delay = maxBackoff
		} else {
			delay += amount
		}
	}
	return delay
}

// DecorrelatedJitter implements the AWS decorrelated jitter scheme,
// approximated statelessly as random_between(base, min(cap, base*3^attempt)).
// It produces smoother tail latencies than exponential jitter under heavy
// concurrent retry load.
type DecorrelatedJitter struct{}

func (DecorrelatedJitter) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return initialBackoff
	}
	if attempt > 10 {
		attempt = 10 // overflow guard
	}

	base := float64(initialBackoff)
	upper := base * Pow(3.0, attempt)

	maxFloat := float64(maxBackoff)
	if upper > maxFloat || upper < 0 {
		upper = maxFloat
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow computes base^exponent by repeated multiplication; exponents here are
// small attempt counters.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
