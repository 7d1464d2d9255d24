package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storebit/checkout/internal/domain/cart"
)

const (
	getActiveCartSQL = `SELECT id, user_id, status FROM carts
		WHERE user_id = $1 AND status = 'active'`

	getCartItemsSQL = `SELECT product_id, quantity, price
		FROM cart_items WHERE cart_id = $1 ORDER BY id`

	cartExistsSQL = `SELECT EXISTS (SELECT 1 FROM carts WHERE id = $1)`

	// Only an active cart transitions to completed; replaying the call on an
	// already-completed cart matches zero rows and is treated as a no-op.
	completeCartSQL = `UPDATE carts SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'active'`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	ensureActiveCartSQL = `INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) WHERE status = 'active' DO UPDATE SET updated_at = now()
		RETURNING id`

	// Price is captured from the catalog at add-time and then frozen; adding
	// the same product again only grows the quantity.
	upsertCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity, price)
		SELECT $1, p.id, $3, p.price FROM products p WHERE p.id = $2
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`
)

var _ cart.Provider = (*CartStore)(nil)

// CartStore owns the cart tables. It backs the cart service's HTTP API and
// doubles as an in-process cart.Provider for tests and single-binary setups.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// ActiveCart returns the user's active cart with its priced line items.
// Returns cart.ErrNoActiveCart when the user has none.
func (s *CartStore) ActiveCart(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := s.pool.Query(ctx, getActiveCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting active cart for %s: %w", userID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (cart.Cart, error) {
		var c cart.Cart
		err := row.Scan(&c.ID, &c.UserID, &c.Status)
		return c, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNoActiveCart
		}
		return nil, fmt.Errorf("getting active cart for %s: %w", userID, err)
	}

	itemRows, err := s.pool.Query(ctx, getCartItemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("getting items for cart %d: %w", c.ID, err)
	}
	c.Items, err = pgx.CollectRows(itemRows, func(row pgx.CollectableRow) (cart.Item, error) {
		var item cart.Item
		err := row.Scan(&item.ProductID, &item.Quantity, &item.Price)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting items for cart %d: %w", c.ID, err)
	}
	return &c, nil
}

// Complete transitions the cart to completed and removes its items. The
// transition is conditional on the cart still being active, so concurrent or
// repeated completions are harmless; completing a cart that never existed is
// still an error.
func (s *CartStore) Complete(ctx context.Context, cartID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning complete tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, completeCartSQL, cartID)
	if err != nil {
		return fmt.Errorf("completing cart %d: %w", cartID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, cartExistsSQL, cartID).Scan(&exists); err != nil {
			return fmt.Errorf("checking cart %d: %w", cartID, err)
		}
		if !exists {
			return errors.Errorf("cart %d not found", cartID)
		}
		// Already completed (or abandoned): nothing left to do.
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, deleteCartItemsSQL, cartID); err != nil {
		return fmt.Errorf("clearing items of cart %d: %w", cartID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing complete of cart %d: %w", cartID, err)
	}
	return nil
}

// EnsureActive returns the id of the user's active cart, creating one when
// none exists. The partial unique index on (user_id) WHERE status = 'active'
// guarantees at most one active cart per user.
func (s *CartStore) EnsureActive(ctx context.Context, userID string) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, ensureActiveCartSQL, userID).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensuring active cart for %s: %w", userID, err)
	}
	return id, nil
}

// AddItem adds quantity of a product to the user's active cart, creating the
// cart as needed and capturing the current catalog price.
func (s *CartStore) AddItem(ctx context.Context, userID string, productID int64, quantity int) error {
	if quantity <= 0 {
		return errors.New("quantity must be greater than 0")
	}

	cartID, err := s.EnsureActive(ctx, userID)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, upsertCartItemSQL, cartID, productID, quantity)
	if err != nil {
		return fmt.Errorf("adding product %d to cart %d: %w", productID, cartID, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("product %d not found", productID)
	}
	return nil
}
