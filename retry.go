package rawgkit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pespinel/RAWGKit-sub001/internal/backoff"
)

// RetryPolicy decides, for a failed attempt, whether to retry and how long to
// wait first. Implementations must be stateless: the policy is shared by all
// concurrent requests.
//
// attempt is zero-based: 0 is the initial try, so a policy with maxRetries=3
// allows attempts 0..3 and refuses a fourth retry.
type RetryPolicy interface {
	ShouldRetry(resp *http.Response, err error, attempt int) (time.Duration, bool)
}

// ExponentialRetryPolicy retries transient failures with exponential backoff
// plus jitter. 429 and 503 responses carrying a Retry-After header use the
// server-provided delay instead.
type ExponentialRetryPolicy struct {
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	jitter         float64
	strategy       backoff.Strategy
}

// NewRetryPolicy creates the default exponential-jitter policy.
func NewRetryPolicy(maxRetries int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) *ExponentialRetryPolicy {
	return NewRetryPolicyWithStrategy(maxRetries, initialBackoff, maxBackoff, multiplier, jitter, backoff.ExponentialJitter{})
}

// NewRetryPolicyWithStrategy creates a policy with a specific backoff strategy.
func NewRetryPolicyWithStrategy(maxRetries int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64, strategy backoff.Strategy) *ExponentialRetryPolicy {
	if strategy == nil {
		strategy = backoff.ExponentialJitter{}
	}
	return &ExponentialRetryPolicy{
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		multiplier:     multiplier,
		jitter:         jitter,
		strategy:       strategy,
	}
}

// MaxRetries returns the configured bound on additional attempts.
func (p *ExponentialRetryPolicy) MaxRetries() int {
	return p.maxRetries
}

// ShouldRetry implements RetryPolicy. Eligibility follows the error taxonomy:
// server errors, timeouts, rate limiting and connectivity failures retry;
// everything else surfaces immediately.
func (p *ExponentialRetryPolicy) ShouldRetry(resp *http.Response, err error, attempt int) (time.Duration, bool) {
	if attempt >= p.maxRetries {
		return 0, false
	}

	retryable := false
	var delay time.Duration

	switch {
	case err != nil:
		retryable = IsTransient(err)
	case resp != nil:
		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			retryable = true
			delay = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
	}

	if !retryable {
		return 0, false
	}

	if delay == 0 {
		delay = p.strategy.Calculate(attempt, p.initialBackoff, p.maxBackoff, p.multiplier, p.jitter)
	}

	return delay, true
}

// parseRetryAfter parses a Retry-After header value, supporting both
// delay-seconds and HTTP-date formats. The result is capped at one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}
