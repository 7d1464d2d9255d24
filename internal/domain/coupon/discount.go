package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount the given rule yields for a subtotal.
// Eligibility (validity window, usage limit, minimum purchase) is the
// validator's responsibility; Apply only does the arithmetic.
func Apply(rule *Rule, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch rule.DiscountType {
	case DiscountPercentage:
		amount := subtotal.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount != nil && amount.GreaterThan(*rule.MaxDiscount) {
			amount = *rule.MaxDiscount
		}
		return floorAtZero(amount).Round(2), nil
	case DiscountFixed:
		// Not capped at the subtotal: the checkout clamps the final total.
		return floorAtZero(rule.Value).Round(2), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
