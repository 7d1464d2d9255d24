package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// InsufficientStockError indicates a requested quantity exceeds the stock
// currently available for a product.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID            int64
	Name          string
	Price         decimal.Decimal
	StockQuantity int
}

// Repository defines catalog reads and the stock ledger mutation.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)

	// DecrementStock atomically subtracts quantity from the product's stock.
	// The update is conditional on sufficient stock remaining, so the ledger
	// can never go negative even when the caller's earlier availability check
	// has gone stale. Returns InsufficientStockError when the condition fails.
	DecrementStock(ctx context.Context, id int64, quantity int) error

	// RestoreStock adds quantity back to the product's stock. Used to undo
	// decrements when a checkout is rolled back.
	RestoreStock(ctx context.Context, id int64, quantity int) error
}
