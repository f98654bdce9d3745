package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("log defaults: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.DBSchema != "ecom" {
		t.Fatalf("DBSchema=%q", cfg.DBSchema)
	}
	if !cfg.MigrateOnStart {
		t.Fatalf("migrations default on")
	}
	if cfg.ReadinessRequireDB || cfg.RequireSigningKeys {
		t.Fatalf("strict policies must default off")
	}
	if cfg.ReadHeaderTimeout != 5*time.Second || cfg.IdleTimeout != 60*time.Second {
		t.Fatalf("timeouts: %v %v", cfg.ReadHeaderTimeout, cfg.IdleTimeout)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ECOM_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("ECOM_LOG_FORMAT", "pretty")
	t.Setenv("ECOM_DB_MAX_CONNS", "25")
	t.Setenv("ECOM_DB_MIGRATE", "false")
	t.Setenv("ECOM_REQUIRE_SIGNING_KEYS", "true")
	t.Setenv("ECOM_CORS_ALLOWED_ORIGINS", "https://shop.example.com, https://admin.example.com")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "127.0.0.1:9999" || cfg.LogFormat != "pretty" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.DBMaxConns != 25 || cfg.MigrateOnStart || !cfg.RequireSigningKeys {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("CORS origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	t.Setenv("ECOM_HTTP_READ_TIMEOUT", "not-a-duration")
	t.Setenv("ECOM_DB_MAX_CONNS", "-4")
	t.Setenv("ECOM_DB_MIGRATE", "sometimes")

	cfg := LoadConfig()
	if cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("ReadTimeout=%v", cfg.ReadTimeout)
	}
	if cfg.DBMaxConns != 10 {
		t.Fatalf("DBMaxConns=%d", cfg.DBMaxConns)
	}
	if !cfg.MigrateOnStart {
		t.Fatalf("bad bool must keep default")
	}
}

func TestMigrateURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"postgres://u:p@localhost:5432/shop", "pgx5://u:p@localhost:5432/shop"},
		{"postgresql://localhost/shop", "pgx5://localhost/shop"},
		{"pgx5://localhost/shop", "pgx5://localhost/shop"},
	}
	for _, tc := range cases {
		if got := migrateURL(tc.in); got != tc.want {
			t.Fatalf("migrateURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestNonZeroFallbacks(t *testing.T) {
	if got := nonZeroDuration(0, time.Second); got != time.Second {
		t.Fatalf("nonZeroDuration=%v", got)
	}
	if got := nonZeroDuration(2*time.Second, time.Second); got != 2*time.Second {
		t.Fatalf("nonZeroDuration=%v", got)
	}
	if got := nonZeroInt(0, 7); got != 7 {
		t.Fatalf("nonZeroInt=%d", got)
	}
}
