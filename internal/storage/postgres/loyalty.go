package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/storebit/checkout/internal/domain/loyalty"
)

const (
	getBalanceSQL = `SELECT balance FROM loyalty_points WHERE user_id = $1`

	// The debit is conditional on sufficient balance, mirroring the stock
	// decrement: a stale pre-check can never drive the balance negative.
	debitPointsSQL = `UPDATE loyalty_points
		SET balance = balance - $2, total_redeemed = total_redeemed + $2
		WHERE user_id = $1 AND balance >= $2`

	creditPointsSQL = `INSERT INTO loyalty_points (user_id, balance, total_earned)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = loyalty_points.balance + EXCLUDED.balance,
		    total_earned = loyalty_points.total_earned + EXCLUDED.total_earned`

	insertPointsTxSQL = `INSERT INTO loyalty_points_transactions
		(user_id, type, points, order_id, description)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ loyalty.Ledger = (*LoyaltyRepository)(nil)

// LoyaltyRepository implements loyalty.Ledger backed by PostgreSQL.
type LoyaltyRepository struct {
	pool *pgxpool.Pool
}

// NewLoyaltyRepository returns a LoyaltyRepository that uses the given pool.
func NewLoyaltyRepository(pool *pgxpool.Pool) *LoyaltyRepository {
	return &LoyaltyRepository{pool: pool}
}

// Balance returns the user's current point balance, zero for unknown users.
func (r *LoyaltyRepository) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, getBalanceSQL, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading loyalty balance for %s: %w", userID, err)
	}
	return balance, nil
}

// Redeem debits the balance and writes the ledger entry in one transaction.
// The debit is a conditional update; zero rows affected means the balance is
// insufficient and the transaction is abandoned.
func (r *LoyaltyRepository) Redeem(ctx context.Context, userID string, points int64, orderID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning redeem tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, debitPointsSQL, userID, points)
	if err != nil {
		return fmt.Errorf("debiting %d points for %s: %w", points, userID, err)
	}
	if tag.RowsAffected() == 0 {
		balance, berr := r.Balance(ctx, userID)
		if berr != nil {
			return berr
		}
		return &loyalty.InsufficientPointsError{Requested: points, Balance: balance}
	}

	_, err = tx.Exec(ctx, insertPointsTxSQL,
		userID, "redeem", points, orderID,
		fmt.Sprintf("redeemed on order %s", orderID),
	)
	if err != nil {
		return fmt.Errorf("writing redeem ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing redeem: %w", err)
	}
	return nil
}

// Earn credits points for the amount spent and writes the ledger entry.
// A zero credit is a no-op.
func (r *LoyaltyRepository) Earn(ctx context.Context, userID, orderID string, amountSpent decimal.Decimal) (int64, error) {
	points := loyalty.EarnedPoints(amountSpent)
	if points == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning earn tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, creditPointsSQL, userID, points); err != nil {
		return 0, fmt.Errorf("crediting %d points for %s: %w", points, userID, err)
	}

	_, err = tx.Exec(ctx, insertPointsTxSQL,
		userID, "earn", points, orderID,
		fmt.Sprintf("earned on order %s", orderID),
	)
	if err != nil {
		return 0, fmt.Errorf("writing earn ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing earn: %w", err)
	}
	return points, nil
}
