// Package loyalty defines the loyalty points ledger: per-user balances,
// redeem/earn operations, and the fixed currency conversion rates.
package loyalty

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Conversion rates between loyalty points and currency. These are single,
// fixed constants for the whole deployment, never per-request values.
const (
	// RedeemRate is the currency value of one redeemed point.
	RedeemRate = 1_000
	// EarnDivisor is the amount of currency spent per point earned
	// (floor division).
	EarnDivisor = 10_000
)

// InsufficientPointsError indicates a redemption request exceeds the user's
// balance.
type InsufficientPointsError struct {
	Requested int64
	Balance   int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient loyalty points: requested %d, balance %d",
		e.Requested, e.Balance)
}

// RedeemValue converts a number of points to its currency discount value.
func RedeemValue(points int64) decimal.Decimal {
	return decimal.NewFromInt(points).Mul(decimal.NewFromInt(RedeemRate))
}

// EarnedPoints returns the points credited for an amount spent.
func EarnedPoints(amountSpent decimal.Decimal) int64 {
	return amountSpent.Div(decimal.NewFromInt(EarnDivisor)).Floor().IntPart()
}

// Ledger is the port to the loyalty points component. Every balance mutation
// produces exactly one corresponding transaction row.
type Ledger interface {
	// Balance returns the user's current point balance, zero for unknown users.
	Balance(ctx context.Context, userID string) (int64, error)

	// Redeem atomically checks the balance, debits it, and writes a ledger
	// entry referencing the order. Returns InsufficientPointsError when the
	// balance is too low.
	Redeem(ctx context.Context, userID string, points int64, orderID string) error

	// Earn credits points for the amount spent on an order and writes a
	// ledger entry. A zero credit is a no-op. Earn never aborts a checkout;
	// callers log failures instead of propagating them.
	Earn(ctx context.Context, userID, orderID string, amountSpent decimal.Decimal) (int64, error)
}
