package rawgkit

import (
	"context"
	"time"
)

type contextKey string

const cacheControlKey contextKey = "rawgkit_cache_control"

// CacheControl carries per-request cache overrides through the context.
type CacheControl struct {
	Disabled bool
	TTL      time.Duration
}

// WithContextCacheDisabled bypasses the cache for requests using ctx: no
// lookup, no fill. Coalescing still applies.
func WithContextCacheDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{Disabled: true})
}

// WithContextCacheEnabled re-enables caching on a context derived from a
// disabled one.
func WithContextCacheEnabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{})
}

// WithContextCacheTTL overrides the TTL used when the response for this
// request is stored.
func WithContextCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{TTL: ttl})
}

func cacheEnabledFromContext(ctx context.Context) bool {
	if control, ok := ctx.Value(cacheControlKey).(*CacheControl); ok {
		return !control.Disabled
	}
	return true
}

func cacheTTLFromContext(ctx context.Context, fallback time.Duration) time.Duration {
	if control, ok := ctx.Value(cacheControlKey).(*CacheControl); ok && control.TTL > 0 {
		return control.TTL
	}
	return fallback
}
