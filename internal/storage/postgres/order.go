package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storebit/checkout/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders
		(id, user_id, total, discount, coupon_code,
		 shipping_address, shipping_phone, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)`

	insertTrackingSQL = `INSERT INTO order_tracking (order_id, status, note)
		VALUES ($1, $2, $3)`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	getOrderSQL = `SELECT id, user_id, total, discount, coupon_code,
			shipping_address, shipping_phone, payment_method, status, created_at
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, user_id, total, discount, coupon_code,
			shipping_address, shipping_phone, payment_method, status, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	getOrderItemsSQL = `SELECT product_id, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header, its items, and the initial tracking
// entry in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.UserID, o.Total, o.Discount, o.CouponCode,
		o.ShippingAddress, o.ShippingPhone, o.PaymentMethod, o.Status,
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		if _, err := tx.Exec(ctx, insertOrderItemSQL, o.ID, item.ProductID, item.Quantity, item.Price); err != nil {
			return fmt.Errorf("inserting order item (product %d): %w", item.ProductID, err)
		}
	}

	if _, err := tx.Exec(ctx, insertTrackingSQL, o.ID, o.Status, "order placed"); err != nil {
		return fmt.Errorf("inserting initial tracking entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// Delete removes the order; items and tracking rows go with it via cascade.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if _, err := r.pool.Exec(ctx, deleteOrderSQL, orderID); err != nil {
		return fmt.Errorf("deleting order %q: %w", orderID, err)
	}
	return nil
}

// AddTracking appends a tracking entry for the order.
func (r *OrderRepository) AddTracking(ctx context.Context, t order.Tracking) error {
	if _, err := r.pool.Exec(ctx, insertTrackingSQL, t.OrderID, t.Status, t.Note); err != nil {
		return fmt.Errorf("inserting tracking entry for %q: %w", t.OrderID, err)
	}
	return nil
}

// GetByID returns the order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Errorf("order %q not found", orderID)
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	items, err := r.itemsFor(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// ListByUser returns the user's orders, newest first, with items.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %s: %w", userID, err)
	}

	os, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %s: %w", userID, err)
	}

	for i := range os {
		items, err := r.itemsFor(ctx, os[i].ID)
		if err != nil {
			return nil, err
		}
		os[i].Items = items
	}
	return os, nil
}

func (r *OrderRepository) itemsFor(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var item order.Item
		err := row.Scan(&item.ProductID, &item.Quantity, &item.Price)
		return item, err
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Total, &o.Discount, &o.CouponCode,
		&o.ShippingAddress, &o.ShippingPhone, &o.PaymentMethod, &o.Status, &o.CreatedAt,
	)
	return o, err
}
