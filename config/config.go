package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Fetcher FetcherConfig
	Batch   BatchConfig
	Cache   CacheConfig
	Log     LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// FetcherConfig controls outbound page fetching.
type FetcherConfig struct {
	// DefaultTimeout is the per-request fetch timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// TLSFingerprint enables the Chrome-like TLS ClientHello on HTTPS
	// connections. Some sites block Go's default TLS stack.
	TLSFingerprint bool // default: true

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64 // default: 10 MB
}

// BatchConfig controls batch scrape jobs.
type BatchConfig struct {
	// MaxConcurrent bounds how many URLs of a batch are fetched at once.
	MaxConcurrent int // default: 8
}

// CacheConfig controls the scrape response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("GATHER_HOST", "0.0.0.0"),
			Port: envIntOr("GATHER_PORT", 8080),
			Mode: envOr("GATHER_MODE", "release"),
		},
		Fetcher: FetcherConfig{
			DefaultTimeout: envDurationOr("GATHER_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:     envDurationOr("GATHER_MAX_TIMEOUT", 120*time.Second),
			DefaultProxy:   os.Getenv("GATHER_PROXY"),
			TLSFingerprint: envBoolOr("GATHER_TLS_FINGERPRINT", true),
			MaxBodyBytes:   envInt64Or("GATHER_MAX_BODY_BYTES", 10<<20),
		},
		Batch: BatchConfig{
			MaxConcurrent: envIntOr("GATHER_MAX_CONCURRENT", 8),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("GATHER_LOG_LEVEL", "info"),
			Format: envOr("GATHER_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
