package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates the lifecycle states of a shopping cart.
type Status string

const (
	// StatusActive marks the single cart currently accepting modifications.
	StatusActive Status = "active"
	// StatusCompleted marks a cart that has been turned into an order.
	StatusCompleted Status = "completed"
	// StatusAbandoned marks a cart cleared without an order.
	StatusAbandoned Status = "abandoned"
)

// ErrNoActiveCart is returned when a user has no active cart. A cart that
// was completed by a concurrent checkout is reported the same way: there is
// nothing left to check out.
var ErrNoActiveCart = errors.New("no active cart")

// Item is one line item in a cart. Price is the unit price captured when the
// item was added; it does not follow later catalog price changes.
type Item struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// Cart is a user's shopping session with its priced line items.
type Cart struct {
	ID     int64
	UserID string
	Status Status
	Items  []Item
}

// Provider is the port through which the order service reaches the cart
// component. The production implementation crosses a service boundary over
// HTTP, so every call can fail independently of the local database.
type Provider interface {
	// ActiveCart returns the user's active cart with its line items.
	// Returns ErrNoActiveCart when the user has none.
	ActiveCart(ctx context.Context, userID string) (*Cart, error)

	// Complete transitions the cart to completed and removes its line items.
	// Completing an already-completed cart is a no-op, not an error, so the
	// caller may retry independently of order creation.
	Complete(ctx context.Context, cartID int64) error
}
