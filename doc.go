// Package rawgkit implements the concurrent network core of a read-only
// RAWG API client:
//
//   - Retries with exponential backoff + jitter (Retry-After aware)
//   - Bounded in-memory response caching with TTL and statistics
//   - Coalescing of concurrent identical requests into one network call
//   - Certificate pinning enforced at the TLS handshake
//   - Optional client-side rate limiting (token bucket)
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Injectable transport, clock and sleep for deterministic tests
//
// Typical usage:
//
//	client := rawgkit.New(
//	    rawgkit.WithAPIKey(os.Getenv("RAWG_API_KEY")),
//	    rawgkit.WithMaxRetries(3),
//	    rawgkit.WithCache(5*time.Minute, 512),
//	)
//	var game struct {
//	    Name string `json:"name"`
//	}
//	err := client.GetResource(ctx, "/games/3498", nil, &game)
//
// Response bodies are treated as opaque bytes until decoding; domain models,
// query builders and credential storage live with the caller. Caching is
// enabled by default and can be bypassed per request with
// WithContextCacheDisabled.
package rawgkit
