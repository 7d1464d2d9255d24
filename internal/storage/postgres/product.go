package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storebit/checkout/internal/domain/product"
)

const (
	getProductByIDSQL = `SELECT id, name, price, stock_quantity
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, price, stock_quantity
		FROM products WHERE id = ANY($1) ORDER BY id`

	// The availability condition lives inside the UPDATE itself: the last
	// writer is authoritative, not the first checker, and stock can never go
	// negative regardless of how stale the caller's earlier read was.
	decrementStockSQL = `UPDATE products
		SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2`

	restoreStockSQL = `UPDATE products
		SET stock_quantity = stock_quantity + $2
		WHERE id = $1`

	getStockSQL = `SELECT stock_quantity FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// DecrementStock applies the conditional atomic decrement. When the update
// affects zero rows the product either does not exist or no longer has the
// requested quantity; the current stock is re-read to build the error.
func (r *ProductRepository) DecrementStock(ctx context.Context, id int64, quantity int) error {
	tag, err := r.pool.Exec(ctx, decrementStockSQL, id, quantity)
	if err != nil {
		return fmt.Errorf("decrementing stock for product %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var available int
	if err := r.pool.QueryRow(ctx, getStockSQL, id).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.ErrNotFound
		}
		return fmt.Errorf("reading stock for product %d: %w", id, err)
	}

	return &product.InsufficientStockError{
		ProductID: id,
		Requested: quantity,
		Available: available,
	}
}

// RestoreStock adds quantity back to the product's stock.
func (r *ProductRepository) RestoreStock(ctx context.Context, id int64, quantity int) error {
	tag, err := r.pool.Exec(ctx, restoreStockSQL, id, quantity)
	if err != nil {
		return fmt.Errorf("restoring stock for product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity)
	return p, err
}
