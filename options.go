package rawgkit

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// Option configures a Client during construction.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. A transport configured here is
// replaced if WithCertificatePinning is also applied.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithBaseURL overrides the API root used by GetResource.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithAPIKey configures a static API key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.credentials = StaticCredentials(key)
	}
}

// WithCredentialSource configures where the API key is obtained from.
func WithCredentialSource(source CredentialSource) Option {
	return func(c *Client) {
		c.credentials = source
	}
}

// WithMaxRetries bounds additional attempts after the initial try.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithInitialBackoff sets the delay before the first retry.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = d
	}
}

// WithMaxBackoff caps the computed backoff delay.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithBackoffMultiplier sets the exponential growth factor.
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.backoffMultiplier = f
	}
}

// WithJitter sets the jitter factor for backoff, clamped to [0, 1].
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitterFactor = f
	}
}

// WithRetryPolicy replaces the default policy entirely; the individual retry
// knobs are ignored when this is set.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithCache sizes the response cache. TTL applies to entries stored without a
// per-request override.
func WithCache(ttl time.Duration, capacity int) Option {
	return func(c *Client) {
		c.cache = NewResponseCache(capacity)
		c.cacheTTL = ttl
	}
}

// WithCacheTTL changes the default TTL without resizing the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithoutCache disables response caching entirely. In-flight coalescing is
// unaffected.
func WithoutCache() Option {
	return func(c *Client) {
		c.cache = nil
	}
}

// WithRateLimiter enables the client-side token bucket.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithCertificatePinning enforces the given pins during TLS handshakes.
// Unpinned domains are accepted (pinning is opt-in per domain).
func WithCertificatePinning(pins PinSet) Option {
	return withPinning(pins, false)
}

// WithStrictCertificatePinning enforces pins and rejects any domain without a
// configured pin set.
func WithStrictCertificatePinning(pins PinSet) Option {
	return withPinning(pins, true)
}

func withPinning(pins PinSet, strict bool) Option {
	return func(c *Client) {
		c.pinValidator = NewCertificateValidator(pins, strict)
		if c.httpClient == nil {
			c.httpClient = &http.Client{Timeout: 30 * time.Second}
		}
		c.httpClient.Transport = NewPinnedTransport(c.pinValidator)
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets a custom logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging with the current debug configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator sets a custom request ID generator.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error describing every problem found.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateCacheConfig()...)
	problems = append(problems, c.validateRateLimiterConfig()...)
	problems = append(problems, c.validatePinningConfig()...)
	problems = append(problems, c.validateDebugConfig()...)
	problems = append(problems, c.validateHTTPClientConfig()...)
	problems = append(problems, c.validateExtremeValues()...)

	if len(problems) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}
	return nil
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.maxRetries < 0 {
		problems = append(problems, "maxRetries must be non-negative")
	}
	if c.initialBackoff <= 0 {
		problems = append(problems, "initialBackoff must be positive")
	}
	if c.maxBackoff < c.initialBackoff {
		problems = append(problems, "maxBackoff must be greater than or equal to initialBackoff")
	}
	if c.backoffMultiplier <= 0 {
		problems = append(problems, "backoffMultiplier must be positive")
	}
	if c.jitterFactor < 0 || c.jitterFactor > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	return problems
}

func (c *Client) validateCacheConfig() []string {
	var problems []string

	if c.cache != nil && c.cacheTTL <= 0 {
		problems = append(problems, "cacheTTL must be positive when cache is enabled")
	}
	return problems
}

func (c *Client) validateRateLimiterConfig() []string {
	var problems []string

	if c.rateLimiter != nil {
		if c.rateLimiter.maxTokens <= 0 {
			problems = append(problems, "rateLimiter maxTokens must be positive")
		}
		if c.rateLimiter.refillRate <= 0 {
			problems = append(problems, "rateLimiter refillRate must be positive")
		}
	}
	return problems
}

func (c *Client) validatePinningConfig() []string {
	var problems []string

	if c.pinValidator == nil {
		return problems
	}
	for domain, pins := range c.pinValidator.pins {
		for pin := range pins {
			raw, err := base64.StdEncoding.DecodeString(pin)
			if err != nil || len(raw) != 32 {
				problems = append(problems, fmt.Sprintf("pin %q for domain %q is not a base64 SHA-256 digest", pin, domain))
			}
		}
	}
	return problems
}

func (c *Client) validateDebugConfig() []string {
	var problems []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}
	return problems
}

func (c *Client) validateHTTPClientConfig() []string {
	var problems []string

	if c.httpClient == nil {
		problems = append(problems, "HTTP client cannot be nil")
	}
	return problems
}

func (c *Client) validateExtremeValues() []string {
	var problems []string

	if c.maxRetries > 100 {
		problems = append(problems, "maxRetries > 100 may cause excessive resource usage")
	}
	if c.initialBackoff > 10*time.Minute {
		problems = append(problems, "initialBackoff > 10m may cause very long delays")
	}
	if c.maxBackoff > time.Hour {
		problems = append(problems, "maxBackoff > 1h may cause extremely long delays")
	}
	if c.cache != nil && c.cacheTTL > 24*time.Hour {
		problems = append(problems, "cacheTTL > 24h may cause stale data issues")
	}
	return problems
}
