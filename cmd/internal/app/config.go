package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, applies embedded migrations on startup before serving.
	MigrateOnStart bool

	// If true:
	// - /readyz returns 503 unless the database is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, startup fails unless real signing keys are configured and the
	// credential signer is NOT running on the symmetric fallback.
	RequireSigningKeys bool

	CORSAllowedOrigins []string
	CORSMaxAgeSeconds  int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("ECOM_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("ECOM_LOG_LEVEL", "info"),
		LogFormat: EnvString("ECOM_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("ECOM_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("ECOM_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("ECOM_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("ECOM_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("ECOM_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("ECOM_DATABASE_URL", ""),
		DBSchema:    EnvString("ECOM_DB_SCHEMA", "ecom"),
		DBMaxConns:  EnvInt32("ECOM_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("ECOM_DB_MIN_CONNS", 0),

		MigrateOnStart: EnvBool("ECOM_DB_MIGRATE", true),

		ReadinessRequireDB: EnvBool("ECOM_READINESS_REQUIRE_DB", false),

		RequireSigningKeys: EnvBool("ECOM_REQUIRE_SIGNING_KEYS", false),

		CORSAllowedOrigins: EnvStringSlice("ECOM_CORS_ALLOWED_ORIGINS", nil),
		CORSMaxAgeSeconds:  EnvInt("ECOM_CORS_MAX_AGE_SECONDS", 600),
	}
}
