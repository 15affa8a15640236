package rawgkit

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %s, want %s", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialBackoff != 100*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 100ms", cfg.InitialBackoff)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.CacheCapacity != 512 {
		t.Errorf("CacheCapacity = %d, want 512", cfg.CacheCapacity)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("RAWG_API_KEY", "env-key")
	t.Setenv("RAWG_BASE_URL", "https://staging.rawg.example/api")
	t.Setenv("RAWG_MAX_RETRIES", "5")
	t.Setenv("RAWG_INITIAL_BACKOFF", "250ms")
	t.Setenv("RAWG_CACHE_TTL", "1m")
	t.Setenv("RAWG_CACHE_CAPACITY", "64")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %s, want env-key", cfg.APIKey)
	}
	if cfg.BaseURL != "https://staging.rawg.example/api" {
		t.Errorf("BaseURL = %s", cfg.BaseURL)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.InitialBackoff != 250*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 250ms", cfg.InitialBackoff)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL)
	}
	if cfg.CacheCapacity != 64 {
		t.Errorf("CacheCapacity = %d, want 64", cfg.CacheCapacity)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative retries", "RAWG_MAX_RETRIES", "-1"},
		{"zero cache capacity", "RAWG_CACHE_CAPACITY", "0"},
		{"zero cache ttl", "RAWG_CACHE_TTL", "0s"},
		{"malformed duration", "RAWG_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := &Config{
		APIKey:         "opt-key",
		BaseURL:        "https://api.rawg.io/api",
		Timeout:        10 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Jitter:         0.2,
		CacheTTL:       time.Minute,
		CacheCapacity:  32,
	}

	client := New(cfg.Options()...)
	if !client.IsValid() {
		t.Fatalf("client built from config should validate: %v", client.ValidationError())
	}
	if client.maxRetries != 2 {
		t.Errorf("maxRetries = %d, want 2", client.maxRetries)
	}
	if client.cacheTTL != time.Minute {
		t.Errorf("cacheTTL = %v, want 1m", client.cacheTTL)
	}
	if client.credentials == nil {
		t.Error("API key from config should set a credential source")
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", client.httpClient.Timeout)
	}
}

func TestConfigOptionsWithoutAPIKey(t *testing.T) {
	cfg := &Config{
		BaseURL:        DefaultBaseURL,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Jitter:         0.1,
		CacheTTL:       5 * time.Minute,
		CacheCapacity:  512,
	}

	client := New(cfg.Options()...)
	if client.credentials != nil {
		t.Error("empty API key should leave the credential source unset")
	}
}
