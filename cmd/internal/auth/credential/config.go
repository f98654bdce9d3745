package credential

import (
	"os"
	"strings"
	"time"
)

// Config defines runtime configuration for credential issuance and
// verification. It is built once at startup and treated as immutable;
// there is no hidden process-wide key state.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	// AccessTTL is the lifetime of access credentials.
	AccessTTL time.Duration

	// RefreshTTL is the lifetime of refresh credentials.
	RefreshTTL time.Duration

	// ClockSkew is the allowed time skew during verification.
	ClockSkew time.Duration

	// PEM-encoded keypairs, one per credential kind. Either both halves of a
	// pair are usable or the signer falls back to HS256 for that kind.
	AccessPrivateKeyPEM  string
	AccessPublicKeyPEM   string
	RefreshPrivateKeyPEM string
	RefreshPublicKeyPEM  string

	// FallbackSecret is the HS256 secret used when a keypair is missing or
	// malformed. Defaults to the deployment environment name, which is a
	// deliberately degraded but functioning mode.
	FallbackSecret string
}

// DefaultConfig returns defaults matching the product's credential policy:
// 10 minute access credentials, 30 day refresh credentials.
func DefaultConfig() Config {
	return Config{
		Issuer:     "ecom",
		AccessTTL:  10 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
		ClockSkew:  30 * time.Second,
	}
}

// LoadConfigFromEnv loads credential configuration from environment
// variables.
//
// Optional (durations must be valid Go duration strings):
//   - ECOM_AUTH_ISSUER
//   - ECOM_ACCESS_TOKEN_TTL
//   - ECOM_REFRESH_TOKEN_TTL
//   - ECOM_AUTH_CLOCK_SKEW
//   - ECOM_ACCESS_TOKEN_PRIVATE_KEY / ECOM_ACCESS_TOKEN_PUBLIC_KEY
//   - ECOM_REFRESH_TOKEN_PRIVATE_KEY / ECOM_REFRESH_TOKEN_PUBLIC_KEY
//   - ECOM_JWT_FALLBACK_SECRET (defaults to ECOM_ENV, then "development")
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("ECOM_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("ECOM_ACCESS_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("ECOM_REFRESH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := os.Getenv("ECOM_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.AccessPrivateKeyPEM = os.Getenv("ECOM_ACCESS_TOKEN_PRIVATE_KEY")
	cfg.AccessPublicKeyPEM = os.Getenv("ECOM_ACCESS_TOKEN_PUBLIC_KEY")
	cfg.RefreshPrivateKeyPEM = os.Getenv("ECOM_REFRESH_TOKEN_PRIVATE_KEY")
	cfg.RefreshPublicKeyPEM = os.Getenv("ECOM_REFRESH_TOKEN_PUBLIC_KEY")

	cfg.FallbackSecret = fallbackSecretFromEnv()

	// Refresh credentials must always outlive access credentials.
	if cfg.RefreshTTL < cfg.AccessTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

func fallbackSecretFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("ECOM_JWT_FALLBACK_SECRET")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("ECOM_ENV")); v != "" {
		return v
	}
	return "development"
}
