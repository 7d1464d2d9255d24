package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle. The checkout only ever writes
// StatusPending; later transitions belong to downstream fulfillment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// Order is a persisted customer order. Total is the final payable amount
// after discounts and is immutable once the order is created.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	Total           decimal.Decimal
	Discount        decimal.Decimal
	CouponCode      string
	ShippingAddress string
	ShippingPhone   string
	PaymentMethod   string
	Status          Status
	CreatedAt       time.Time
}

// Item is one line item of an order. Price is copied from the cart item at
// checkout time, never from the live catalog price.
type Item struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// Tracking is one entry in an order's status history.
type Tracking struct {
	OrderID   string
	Status    Status
	Note      string
	CreatedAt time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order header, its items, and the initial tracking
	// entry in one local transaction.
	Create(ctx context.Context, o *Order) error

	// Delete removes an order together with its items and tracking entries.
	// Used to roll back a checkout that lost the stock race.
	Delete(ctx context.Context, orderID string) error

	AddTracking(ctx context.Context, t Tracking) error

	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}
