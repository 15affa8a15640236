package rawgkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the RAWG API root used by GetResource when no override is
// configured.
const DefaultBaseURL = "https://api.rawg.io/api"

// maxResponseSize bounds how much of a response body is read into memory.
const maxResponseSize = 10 * 1024 * 1024

// Client turns logical "fetch resource" calls into at most one in-flight HTTP
// request per canonical URL, serving repeat callers from a bounded TTL cache,
// retrying transient failures with backoff and optionally enforcing
// certificate pins on the transport. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	baseURL     string
	credentials CredentialSource

	retryPolicy       RetryPolicy
	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitterFactor      float64

	cache    *ResponseCache
	cacheTTL time.Duration

	inflight *inflightRegistry

	rateLimiter  *RateLimiter
	pinValidator *CertificateValidator

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	// sleep waits out retry backoff; injectable so tests can observe delays
	// without real time passing.
	sleep func(ctx context.Context, d time.Duration) error

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent:         "rawgkit/" + Version,
		baseURL:           DefaultBaseURL,
		maxRetries:        3,
		initialBackoff:    100 * time.Millisecond,
		maxBackoff:        10 * time.Second,
		backoffMultiplier: 2.0,
		jitterFactor:      0.1,
		cache:             NewResponseCache(512),
		cacheTTL:          5 * time.Minute,
		inflight:          newInflightRegistry(),
		debug:             DefaultDebugConfig(),
		sleep:             sleepContext,
	}

	for _, option := range options {
		option(client)
	}

	if client.retryPolicy == nil {
		client.retryPolicy = NewRetryPolicy(client.maxRetries, client.initialBackoff, client.maxBackoff, client.backoffMultiplier, client.jitterFactor)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// GetJSON fetches rawURL and decodes the JSON payload into out. Concurrent
// callers for the same canonical URL share one network call and must all
// request the same out type; each decodes independently from the shared raw
// bytes. A corrupt payload, cached or fresh, surfaces as a DecodingError and
// is never retried against the network.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out interface{}) error {
	payload, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &ClientError{
			Type:      ErrorTypeDecoding,
			Message:   "cannot decode response payload",
			Cause:     err,
			Method:    http.MethodGet,
			URL:       rawURL,
			Endpoint:  endpointFromURL(rawURL),
			Timestamp: time.Now(),
		}
	}
	return nil
}

// GetRaw fetches rawURL and returns the raw payload bytes.
func (c *Client) GetRaw(ctx context.Context, rawURL string) ([]byte, error) {
	return c.get(ctx, rawURL)
}

// GetResource fetches an API resource by path relative to the configured base
// URL, attaching query items and the API key from the credential source.
func (c *Client) GetResource(ctx context.Context, path string, query map[string]string, out interface{}) error {
	items := make(map[string]string, len(query)+1)
	for name, value := range query {
		items[name] = value
	}

	if c.credentials != nil {
		apiKey, err := c.credentials.APIKey(ctx)
		if err != nil {
			return &ClientError{
				Type:      ErrorTypeUnauthorized,
				Message:   "cannot obtain API key",
				Cause:     err,
				Timestamp: time.Now(),
			}
		}
		if apiKey != "" {
			items["key"] = apiKey
		}
	}

	rawURL, err := BuildURL(c.baseURL, path, items)
	if err != nil {
		return err
	}
	return c.GetJSON(ctx, rawURL, out)
}

// get runs the fetch pipeline: canonical key, cache lookup, join-or-own the
// in-flight call, wait for the shared result.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()

	key, err := NewRequestKey(rawURL)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeInvalidURL, "unknown")
		}
		return nil, err
	}
	endpoint := endpointFromURL(rawURL)

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("starting request", "requestID", requestID, "url", rawURL, "endpoint", endpoint)
	}

	if c.metrics != nil {
		c.metrics.RecordRequestStart(endpoint)
		defer c.metrics.RecordRequestEnd(endpoint)
	}

	useCache := c.cache != nil && cacheEnabledFromContext(ctx)
	ttl := cacheTTLFromContext(ctx, c.cacheTTL)

	if useCache {
		if payload, ok := c.cache.Get(key); ok {
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Debug("cache hit", "requestID", requestID, "key", key.String())
			}
			if c.metrics != nil {
				c.metrics.RecordCacheHit(endpoint)
				c.metrics.RecordRequest(endpoint, http.StatusOK, time.Since(start))
			}
			return payload, nil
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(endpoint)
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
			c.logger.Debug("cache miss", "requestID", requestID, "key", key.String())
		}
	}

	call, owner := c.inflight.join(key.String())
	if owner {
		go c.run(call, key, rawURL, endpoint, requestID, useCache, ttl)
	} else {
		if c.metrics != nil {
			c.metrics.RecordCoalesced(endpoint)
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogCoalesce && c.logger != nil {
			c.logger.Debug("joined in-flight request", "requestID", requestID, "key", key.String())
		}
	}

	payload, status, err := call.wait(ctx)

	if c.metrics != nil {
		c.metrics.RecordRequest(endpoint, status, time.Since(start))
	}

	if err != nil {
		var clientErr *ClientError
		if c.metrics != nil && errors.As(err, &clientErr) {
			c.metrics.RecordError(clientErr.Type, endpoint)
		}
		return nil, err
	}
	return payload, nil
}

// run is the owner side of an in-flight call: drive the retry loop, fill the
// cache on success and fan the result out to every waiter. The cache write
// happens before completion so a caller observing success always observes the
// entry too.
func (c *Client) run(call *inflightCall, key RequestKey, rawURL, endpoint, requestID string, fill bool, ttl time.Duration) {
	payload, status, err := c.doWithRetry(call.ctx, rawURL, endpoint, requestID, 0, time.Now())

	if err == nil && fill {
		c.cache.Set(key, payload, ttl)
		if c.metrics != nil {
			c.metrics.RecordCacheSize(c.cache.len())
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
			c.logger.Debug("response cached", "requestID", requestID, "key", key.String(), "ttl", ttl)
		}
	}

	c.inflight.complete(key.String(), payload, status, err)
}

// doWithRetry executes one attempt and recurses after a backoff delay while
// the policy allows. Backoff waits respect the call context, so an abandoned
// call stops sleeping as soon as its last waiter departs.
func (c *Client) doWithRetry(ctx context.Context, rawURL, endpoint, requestID string, attempt int, startTime time.Time) ([]byte, int, error) {
	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
			c.logger.Warn("rate limit exceeded", "requestID", requestID, "endpoint", endpoint)
		}
		if c.metrics != nil {
			c.metrics.RecordRateLimited(endpoint)
		}
		return nil, 0, c.newError(ErrorTypeRateLimit, "client-side rate limit exceeded", ErrRateLimited, requestID, rawURL, endpoint, 0, attempt, time.Since(startTime))
	}

	if attempt > 0 {
		if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
			c.logger.Info("retry attempt", "requestID", requestID, "attempt", attempt, "maxRetries", c.maxRetries, "endpoint", endpoint)
		}
		if c.metrics != nil {
			c.metrics.RecordRetry(endpoint, attempt)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, c.newError(ErrorTypeInvalidURL, "cannot build request", err, requestID, rawURL, endpoint, 0, attempt, time.Since(startTime))
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)

	var status int
	var payload []byte
	var failure *ClientError

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Waiter-driven cancellation, not a transport failure.
			return nil, 0, context.Canceled
		}
		errType := errorTypeForTransport(err)
		if errType == ErrorTypePinning {
			if c.metrics != nil {
				c.metrics.RecordPinFailure(endpoint)
			}
			if c.debug != nil && c.debug.Enabled && c.debug.LogPinning && c.logger != nil {
				c.logger.Error("certificate pinning rejected handshake", "requestID", requestID, "endpoint", endpoint, "error", err.Error())
			}
		}
		failure = c.newError(errType, "request failed", err, requestID, rawURL, endpoint, 0, attempt, time.Since(startTime))
	} else {
		status = resp.StatusCode
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()

		switch {
		case readErr != nil:
			failure = c.newError(ErrorTypeInvalidResponse, "cannot read response body", readErr, requestID, rawURL, endpoint, status, attempt, time.Since(startTime))
		case status >= 400:
			failure = c.newError(errorTypeForStatus(status), fmt.Sprintf("unexpected status %d", status), nil, requestID, rawURL, endpoint, status, attempt, time.Since(startTime))
			if status == 429 {
				failure.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			}
		default:
			payload = body
		}
	}

	if failure == nil {
		return payload, status, nil
	}

	var delay time.Duration
	var retry bool
	if err != nil {
		delay, retry = c.retryPolicy.ShouldRetry(nil, failure, attempt)
	} else {
		delay, retry = c.retryPolicy.ShouldRetry(resp, nil, attempt)
	}

	if retry {
		if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
			c.logger.Info("scheduling retry", "requestID", requestID, "attempt", attempt+1, "backoff", delay, "endpoint", endpoint)
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return nil, status, sleepErr
		}
		return c.doWithRetry(ctx, rawURL, endpoint, requestID, attempt+1, startTime)
	}

	if IsTransient(failure) {
		exhausted := c.newError(ErrorTypeExhausted, fmt.Sprintf("giving up after %d attempts", attempt+1), failure, requestID, rawURL, endpoint, status, attempt, time.Since(startTime))
		return nil, status, exhausted
	}

	return nil, status, failure
}

func (c *Client) newError(errType, message string, cause error, requestID, rawURL, endpoint string, status, attempt int, duration time.Duration) *ClientError {
	return &ClientError{
		Type:       errType,
		Message:    message,
		Cause:      cause,
		RequestID:  requestID,
		Method:     http.MethodGet,
		URL:        rawURL,
		Endpoint:   endpoint,
		StatusCode: status,
		Attempt:    attempt,
		MaxRetries: c.maxRetries,
		Timestamp:  time.Now(),
		Duration:   duration,
	}
}

// ClearCache removes every cached response.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// CacheStats returns a snapshot of the response cache.
func (c *Client) CacheStats() CacheStats {
	if c.cache == nil {
		return CacheStats{}
	}
	return c.cache.Stats()
}

// CleanExpiredCache sweeps expired entries, returning how many were removed.
func (c *Client) CleanExpiredCache() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.CleanExpired()
}

// CancelAllRequests aborts every in-flight network call. Waiters observe a
// context cancellation error.
func (c *Client) CancelAllRequests() {
	c.inflight.cancelAll()
}

// PinValidator returns the configured certificate validator, if any.
func (c *Client) PinValidator() *CertificateValidator {
	return c.pinValidator
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// endpointFromURL extracts host+path for metric and log labels.
func endpointFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}

	endpoint := u.Host
	if u.Path != "" && u.Path != "/" {
		endpoint += u.Path
	} else {
		endpoint += "/"
	}
	return endpoint
}
