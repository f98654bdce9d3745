package credential

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTTL != 10*time.Minute {
		t.Fatalf("unexpected access TTL: %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 720*time.Hour {
		t.Fatalf("unexpected refresh TTL: %v", cfg.RefreshTTL)
	}
	if cfg.FallbackSecret == "" {
		t.Fatalf("fallback secret must never be empty")
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("ECOM_AUTH_ISSUER", "ecom-test")
	t.Setenv("ECOM_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("ECOM_REFRESH_TOKEN_TTL", "24h")
	t.Setenv("ECOM_JWT_FALLBACK_SECRET", "s3cret")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "ecom-test" {
		t.Fatalf("issuer not applied: %q", cfg.Issuer)
	}
	if cfg.AccessTTL != 5*time.Minute || cfg.RefreshTTL != 24*time.Hour {
		t.Fatalf("ttl overrides not applied: %v / %v", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if cfg.FallbackSecret != "s3cret" {
		t.Fatalf("fallback secret not applied")
	}
}

func TestLoadConfigFromEnv_BadDuration(t *testing.T) {
	t.Setenv("ECOM_ACCESS_TOKEN_TTL", "soon")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_RefreshShorterThanAccess(t *testing.T) {
	t.Setenv("ECOM_ACCESS_TOKEN_TTL", "1h")
	t.Setenv("ECOM_REFRESH_TOKEN_TTL", "5m")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
