// Package app wires the shop server runtime: config, logging, persistence,
// the auth surface and the checkout surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ecom/cmd/identity"
	authapi "ecom/cmd/internal/auth/api"
	"ecom/cmd/internal/auth/credential"
	"ecom/cmd/internal/auth/session"
	"ecom/cmd/internal/checkout"
	"ecom/cmd/security/password"
)

// App owns the HTTP server and the wired services behind it.
type App struct {
	cfg Config
	log Logger

	dbPool *pgxpool.Pool

	auth   *authapi.Handler
	orders *checkout.Service
}

// New constructs a fully wired App instance from config and logger.
//
// Without ECOM_DATABASE_URL the server runs on in-memory stores: useful for
// local development, useless for anything persistent. With a database it
// optionally migrates, then wires the Postgres-backed stores plus audit
// logging and checkout.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sigCfg, err := credential.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	signer, err := credential.NewSigner(sigCfg)
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, signer); err != nil {
		return nil, err
	}
	if signer.Degraded() {
		log.Warn("auth.signer.degraded", "reason", "symmetric_fallback")
	}

	pwcfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	var (
		pool     *pgxpool.Pool
		users    identity.Store
		sessions session.Store
		orders   *checkout.Service
	)

	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		users = identity.NewMemoryStore(pwcfg)
		sessions = session.NewMemoryStore()
	} else {
		if cfg.MigrateOnStart {
			if err := RunMigrations(cfg.DatabaseURL); err != nil {
				return nil, err
			}
			log.Info("db.migrations.applied")
		}

		pool, err = NewDBPool(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)

		userStore, err := identity.NewPostgresStore(pool,
			identity.WithSchema(cfg.DBSchema),
			identity.WithPasswordConfig(pwcfg),
		)
		if err != nil {
			pool.Close()
			return nil, err
		}
		users = userStore

		sessionStore, err := session.NewPostgresStore(pool, session.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		sessions = sessionStore

		orders, err = checkout.NewService(pool, cfg.DBSchema, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	roles := func(ctx context.Context, userID string) (string, []string, error) {
		u, err := users.GetUserByID(ctx, userID)
		if err != nil {
			return "", nil, err
		}
		return u.Role, nil, nil
	}
	sessionSvc, err := session.NewService(sessions, signer, pwcfg, roles, log)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	var authOpts []authapi.HandlerOption
	if pool != nil {
		authOpts = append(authOpts, authapi.WithAuditPool(pool, cfg.DBSchema))
	}
	auth, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), users, sessionSvc, signer, pwcfg, authOpts...)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:    cfg,
		log:    log,
		dbPool: pool,
		auth:   auth,
		orders: orders,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.auth, a.orders)

	handler := WithRequestLogging(mux, a.log)
	handler = WithSecurityHeaders(handler)
	handler = WithCORS(handler, a.cfg)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbPool != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
