package rawgkit

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds client settings loadable from the environment. It exists so
// deployments can tune the client without code changes; programmatic callers
// can skip it and use options directly.
type Config struct {
	APIKey  string `env:"RAWG_API_KEY"`
	BaseURL string `env:"RAWG_BASE_URL" envDefault:"https://api.rawg.io/api"`

	Timeout        time.Duration `env:"RAWG_TIMEOUT" envDefault:"30s"`
	MaxRetries     int           `env:"RAWG_MAX_RETRIES" envDefault:"3"`
	InitialBackoff time.Duration `env:"RAWG_INITIAL_BACKOFF" envDefault:"100ms"`
	MaxBackoff     time.Duration `env:"RAWG_MAX_BACKOFF" envDefault:"10s"`
	Jitter         float64       `env:"RAWG_JITTER" envDefault:"0.1"`

	CacheTTL      time.Duration `env:"RAWG_CACHE_TTL" envDefault:"5m"`
	CacheCapacity int           `env:"RAWG_CACHE_CAPACITY" envDefault:"512"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("RAWG_MAX_RETRIES must be non-negative, got %d", cfg.MaxRetries)
	}
	if cfg.CacheCapacity <= 0 {
		return nil, fmt.Errorf("RAWG_CACHE_CAPACITY must be positive, got %d", cfg.CacheCapacity)
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("RAWG_CACHE_TTL must be positive, got %v", cfg.CacheTTL)
	}

	return &cfg, nil
}

// Options renders the configuration as client options. Pins are not part of
// the environment surface; pass them alongside when pinning is wanted:
//
//	client := rawgkit.New(append(cfg.Options(), rawgkit.WithCertificatePinning(pins))...)
func (c *Config) Options() []Option {
	opts := []Option{
		WithBaseURL(c.BaseURL),
		WithTimeout(c.Timeout),
		WithMaxRetries(c.MaxRetries),
		WithInitialBackoff(c.InitialBackoff),
		WithMaxBackoff(c.MaxBackoff),
		WithJitter(c.Jitter),
		WithCache(c.CacheTTL, c.CacheCapacity),
	}
	if c.APIKey != "" {
		opts = append(opts, WithAPIKey(c.APIKey))
	}
	return opts
}
