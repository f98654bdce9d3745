// Package checkout implements the transactional order placement path:
// conditional stock decrements, order + payment creation, and cart cleanup
// in a single database transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecom/cmd/identity/ids"
)

var (
	// ErrInvalidInput is returned for empty or malformed checkout requests.
	ErrInvalidInput = errors.New("invalid checkout input")

	// ErrInsufficientStock is returned when any item cannot be covered by
	// current stock. The whole transaction rolls back; no partial orders.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Item is one order line.
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Result describes a placed order.
type Result struct {
	OrderID    string `json:"orderId"`
	PaymentID  string `json:"paymentId"`
	TotalCents int64  `json:"totalCents"`
	Status     string `json:"status"`
	Items      []Item `json:"items"`
	Method     string `json:"paymentMethod"`
}

// Service places orders over a pgx pool.
type Service struct {
	pool   *pgxpool.Pool
	schema string
	log    *slog.Logger
}

// NewService constructs a checkout Service. The pool is owned by the caller.
func NewService(pool *pgxpool.Pool, schema string, log *slog.Logger) (*Service, error) {
	if pool == nil {
		return nil, fmt.Errorf("checkout: nil pool")
	}
	if strings.TrimSpace(schema) == "" {
		schema = "ecom"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{pool: pool, schema: schema, log: log}, nil
}

func (s *Service) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

// Checkout places an order for the user.
//
// All stock decrements are conditional updates; a decrement that affects
// zero rows aborts the transaction, which also restores every earlier
// decrement. Covered cart items are removed only when the order commits.
func (s *Service) Checkout(ctx context.Context, now time.Time, userID, paymentMethod string, items []Item) (Result, error) {
	if strings.TrimSpace(userID) == "" || len(items) == 0 {
		return Result{}, ErrInvalidInput
	}
	method := strings.ToLower(strings.TrimSpace(paymentMethod))
	if method == "" {
		method = "card"
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity <= 0 {
			return Result{}, ErrInvalidInput
		}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	products := s.table("products")

	var totalCents int64
	prices := make(map[string]int64, len(items))
	for _, it := range items {
		var priceCents int64
		err := tx.QueryRow(ctx,
			`UPDATE `+products+`
			    SET stock_quantity = stock_quantity - $1,
			        updated_at = $2
			  WHERE id = $3
			    AND is_active
			    AND stock_quantity >= $1
			  RETURNING price_cents`,
			it.Quantity, now, it.ProductID,
		).Scan(&priceCents)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Result{}, ErrInsufficientStock
			}
			return Result{}, err
		}
		prices[it.ProductID] = priceCents
		totalCents += priceCents * int64(it.Quantity)
	}

	orderID, err := ids.NewULID(now)
	if err != nil {
		return Result{}, err
	}
	paymentID, err := ids.NewULID(now)
	if err != nil {
		return Result{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+s.table("orders")+` (id, user_id, status, total_cents, created_at, updated_at)
		 VALUES ($1, $2, 'pending', $3, $4, $4)`,
		orderID, userID, totalCents, now,
	)
	if err != nil {
		return Result{}, err
	}

	for _, it := range items {
		itemID, err := ids.NewULID(now)
		if err != nil {
			return Result{}, err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO `+s.table("order_items")+` (id, order_id, product_id, quantity, unit_price_cents, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			itemID, orderID, it.ProductID, it.Quantity, prices[it.ProductID], now,
		)
		if err != nil {
			return Result{}, err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+s.table("payments")+` (id, order_id, method, status, amount_cents, created_at, updated_at)
		 VALUES ($1, $2, $3, 'pending', $4, $5, $5)`,
		paymentID, orderID, method, totalCents, now,
	)
	if err != nil {
		return Result{}, err
	}

	// Cart cleanup covers only the ordered products.
	productIDs := make([]string, 0, len(items))
	for _, it := range items {
		productIDs = append(productIDs, it.ProductID)
	}
	_, err = tx.Exec(ctx,
		`DELETE FROM `+s.table("cart_items")+`
		  WHERE user_id = $1 AND product_id = ANY($2)`,
		userID, productIDs,
	)
	if err != nil {
		return Result{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}

	s.log.InfoContext(ctx, "order placed",
		slog.String("order_id", orderID),
		slog.String("user_id", userID),
		slog.Int64("total_cents", totalCents),
	)

	return Result{
		OrderID:    orderID,
		PaymentID:  paymentID,
		TotalCents: totalCents,
		Status:     "pending",
		Items:      items,
		Method:     method,
	}, nil
}
