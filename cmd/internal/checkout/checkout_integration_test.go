package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecom/cmd/identity/ids"
)

// Integration tests are opt-in and require ECOM_DATABASE_URL.

func TestCheckout_PlacesOrderAndDecrementsStock(t *testing.T) {
	t.Parallel()

	pool, svc, schema := mustOpenCheckout(t)
	defer pool.Close()
	t.Cleanup(func() { dropCheckoutSchema(t, pool, schema) })

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)
	p1 := seedProduct(t, pool, schema, "widget", 1500, 10)
	p2 := seedProduct(t, pool, schema, "gadget", 2500, 3)
	seedCartItem(t, pool, schema, "user-1", p1, 2)

	res, err := svc.Checkout(ctx, now, "user-1", "card", []Item{
		{ProductID: p1, Quantity: 2},
		{ProductID: p2, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if res.TotalCents != 2*1500+2500 {
		t.Fatalf("unexpected total: %d", res.TotalCents)
	}
	if res.Status != "pending" {
		t.Fatalf("unexpected status: %q", res.Status)
	}

	if got := stockOf(t, pool, schema, p1); got != 8 {
		t.Fatalf("stock p1 = %d, want 8", got)
	}
	if got := stockOf(t, pool, schema, p2); got != 2 {
		t.Fatalf("stock p2 = %d, want 2", got)
	}
	if n := cartCount(t, pool, schema, "user-1"); n != 0 {
		t.Fatalf("cart must be cleaned, %d rows left", n)
	}
}

func TestCheckout_InsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	pool, svc, schema := mustOpenCheckout(t)
	defer pool.Close()
	t.Cleanup(func() { dropCheckoutSchema(t, pool, schema) })

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now().UTC()
	p1 := seedProduct(t, pool, schema, "widget", 1500, 10)
	p2 := seedProduct(t, pool, schema, "rare", 9900, 1)

	_, err := svc.Checkout(ctx, now, "user-1", "card", []Item{
		{ProductID: p1, Quantity: 4},
		{ProductID: p2, Quantity: 2},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The p1 decrement must have been rolled back with the transaction.
	if got := stockOf(t, pool, schema, p1); got != 10 {
		t.Fatalf("stock p1 = %d, want 10 after rollback", got)
	}
	var orders int
	err = pool.QueryRow(ctx, `SELECT count(*) FROM `+pgx.Identifier{schema, "orders"}.Sanitize()).Scan(&orders)
	if err != nil || orders != 0 {
		t.Fatalf("no order may exist after rollback: n=%d err=%v", orders, err)
	}
}

func TestCheckout_InactiveProductFails(t *testing.T) {
	t.Parallel()

	pool, svc, schema := mustOpenCheckout(t)
	defer pool.Close()
	t.Cleanup(func() { dropCheckoutSchema(t, pool, schema) })

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	p := seedProduct(t, pool, schema, "retired", 1000, 10)
	mustExecSQL(t, pool, `UPDATE `+pgx.Identifier{schema, "products"}.Sanitize()+` SET is_active = FALSE WHERE id = $1`, p)

	_, err := svc.Checkout(ctx, time.Now().UTC(), "user-1", "card", []Item{{ProductID: p, Quantity: 1}})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for inactive product, got %v", err)
	}
}

func TestCheckout_InvalidInput(t *testing.T) {
	t.Parallel()

	pool, svc, schema := mustOpenCheckout(t)
	defer pool.Close()
	t.Cleanup(func() { dropCheckoutSchema(t, pool, schema) })

	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := svc.Checkout(ctx, now, "user-1", "card", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty items, got %v", err)
	}
	if _, err := svc.Checkout(ctx, now, "", "card", []Item{{ProductID: "p", Quantity: 1}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty user, got %v", err)
	}
	if _, err := svc.Checkout(ctx, now, "user-1", "card", []Item{{ProductID: "p", Quantity: 0}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero quantity, got %v", err)
	}
}

// ---- helpers ----

func mustOpenCheckout(t *testing.T) (*pgxpool.Pool, *Service, string) {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("ECOM_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: ECOM_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse ECOM_DATABASE_URL: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()
	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if checkoutSkippable(err) {
			t.Skipf("integration test skipped: Postgres unreachable (ECOM_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	schema := "ecom_it_" + strings.ToLower(id)

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	ddl := fmt.Sprintf(`
CREATE TABLE %s (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price_cents BIGINT NOT NULL,
  stock_quantity INT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT chk_products_stock_nonneg CHECK (stock_quantity >= 0)
);
CREATE TABLE %s (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  total_cents BIGINT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE %s (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INT NOT NULL,
  unit_price_cents BIGINT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE %s (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  method TEXT NOT NULL,
  status TEXT NOT NULL,
  amount_cents BIGINT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE %s (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`,
		pgx.Identifier{schema, "products"}.Sanitize(),
		pgx.Identifier{schema, "orders"}.Sanitize(),
		pgx.Identifier{schema, "order_items"}.Sanitize(),
		pgx.Identifier{schema, "payments"}.Sanitize(),
		pgx.Identifier{schema, "cart_items"}.Sanitize(),
	)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	svc, err := NewService(pool, schema, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return pool, svc, schema
}

func dropCheckoutSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, schema, name string, priceCents int64, stock int) string {
	t.Helper()

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	mustExecSQL(t, pool,
		`INSERT INTO `+pgx.Identifier{schema, "products"}.Sanitize()+` (id, name, price_cents, stock_quantity)
		 VALUES ($1, $2, $3, $4)`,
		id, name, priceCents, stock,
	)
	return id
}

func seedCartItem(t *testing.T, pool *pgxpool.Pool, schema, userID, productID string, qty int) {
	t.Helper()

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	mustExecSQL(t, pool,
		`INSERT INTO `+pgx.Identifier{schema, "cart_items"}.Sanitize()+` (id, user_id, product_id, quantity)
		 VALUES ($1, $2, $3, $4)`,
		id, userID, productID, qty,
	)
}

func stockOf(t *testing.T, pool *pgxpool.Pool, schema, productID string) int {
	t.Helper()

	var n int
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.QueryRow(ctx,
		`SELECT stock_quantity FROM `+pgx.Identifier{schema, "products"}.Sanitize()+` WHERE id = $1`,
		productID,
	).Scan(&n); err != nil {
		t.Fatalf("stock query: %v", err)
	}
	return n
}

func cartCount(t *testing.T, pool *pgxpool.Pool, schema, userID string) int {
	t.Helper()

	var n int
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.QueryRow(ctx,
		`SELECT count(*) FROM `+pgx.Identifier{schema, "cart_items"}.Sanitize()+` WHERE user_id = $1`,
		userID,
	).Scan(&n); err != nil {
		t.Fatalf("cart query: %v", err)
	}
	return n
}

func mustExecSQL(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := pool.Exec(ctx, sql, args...); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
}

// checkoutSkippable reports whether the connection error means Postgres is
// simply unreachable, so the test should skip instead of fail. CI never
// skips; an unreachable database there is a real failure.
func checkoutSkippable(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
