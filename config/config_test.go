package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults wrong: %+v", cfg.Server)
	}
	if cfg.Fetcher.DefaultTimeout != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", cfg.Fetcher.DefaultTimeout)
	}
	if !cfg.Fetcher.TLSFingerprint {
		t.Error("TLS fingerprint should default to on")
	}
	if cfg.Fetcher.MaxBodyBytes != 10<<20 {
		t.Errorf("max body bytes = %d, want 10 MB", cfg.Fetcher.MaxBodyBytes)
	}
	if cfg.Batch.MaxConcurrent != 8 {
		t.Errorf("batch concurrency = %d, want 8", cfg.Batch.MaxConcurrent)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GATHER_PORT", "9090")
	t.Setenv("GATHER_MODE", "debug")
	t.Setenv("GATHER_DEFAULT_TIMEOUT", "5s")
	t.Setenv("GATHER_TLS_FINGERPRINT", "false")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Mode != "debug" {
		t.Errorf("mode = %q, want debug", cfg.Server.Mode)
	}
	if cfg.Fetcher.DefaultTimeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Fetcher.DefaultTimeout)
	}
	if cfg.Fetcher.TLSFingerprint {
		t.Error("TLS fingerprint should be off")
	}
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("GATHER_PORT", "not-a-number")
	t.Setenv("GATHER_DEFAULT_TIMEOUT", "soon")

	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want fallback 8080", cfg.Server.Port)
	}
	if cfg.Fetcher.DefaultTimeout != 30*time.Second {
		t.Errorf("timeout = %v, want fallback 30s", cfg.Fetcher.DefaultTimeout)
	}
}
