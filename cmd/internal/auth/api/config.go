package authapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	// TrustProxy enables X-Forwarded-For parsing for client IPs.
	TrustProxy bool

	// MaxBodyBytes bounds request bodies on auth endpoints.
	MaxBodyBytes int64

	// Cookie transport settings. Both credentials travel as httpOnly
	// cookies; Secure should be on everywhere except local development.
	CookieSecure bool
	CookieDomain string
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:   envBool("ECOM_AUTH_TRUST_PROXY", false),
		MaxBodyBytes: envInt64("ECOM_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		CookieSecure: envBool("ECOM_COOKIE_SECURE", true),
		CookieDomain: strings.TrimSpace(os.Getenv("ECOM_COOKIE_DOMAIN")),
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
