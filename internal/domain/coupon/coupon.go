package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the subtotal, optionally
	// capped by the rule's MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed amount. It is intentionally not capped
	// at the subtotal; the checkout clamps the final total at zero.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrInvalidCoupon is returned when a code is unknown or inactive.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponNotStarted is returned before the coupon's validity window opens.
	ErrCouponNotStarted = errors.New("coupon not yet active")
	// ErrCouponExpired is returned after the coupon's validity window closes.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its
	// allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// BelowMinimumError indicates the subtotal does not meet the coupon's
// minimum purchase amount.
type BelowMinimumError struct {
	Code    string
	Minimum decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum purchase of %s", e.Code, e.Minimum)
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	ID           int64
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinPurchase  decimal.Decimal
	// MaxDiscount caps percentage discounts when non-nil.
	MaxDiscount *decimal.Decimal
	// UsageLimit bounds total uses when non-nil; Uses is the current count.
	UsageLimit *int
	Uses       int
	ValidFrom  *time.Time
	ValidUntil *time.Time
	Active     bool
}

// Discount is the outcome of a successful coupon evaluation.
type Discount struct {
	CouponID int64
	Code     string
	Amount   decimal.Decimal
}

// Repository provides coupon rule lookup and the append-only usage ledger.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)

	// RecordUsage appends a usage row linking coupon, user, and order, and
	// increments the coupon's used count. Both writes happen in one
	// transaction.
	RecordUsage(ctx context.Context, couponID int64, userID, orderID string) error
}
