package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator evaluates a coupon code against a pre-discount subtotal and
// returns the computed discount. Validation is read-only: usage is recorded
// separately, after the order it discounts actually exists.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (*Discount, error)
}

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and applying them via the Apply function.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate checks the rule for the given code in a fixed order: existence and
// active flag, validity window, usage limit, minimum purchase. The first
// failed check determines the rejection reason.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal, _ string) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if !rule.Active {
		return nil, ErrInvalidCoupon
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponNotStarted
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}

	if rule.UsageLimit != nil && rule.Uses >= *rule.UsageLimit {
		return nil, ErrCouponUsageLimitReached
	}

	if subtotal.LessThan(rule.MinPurchase) {
		return nil, &BelowMinimumError{Code: rule.Code, Minimum: rule.MinPurchase}
	}

	amount, err := Apply(rule, subtotal)
	if err != nil {
		return nil, err
	}

	return &Discount{
		CouponID: rule.ID,
		Code:     rule.Code,
		Amount:   amount,
	}, nil
}
