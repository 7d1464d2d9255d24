package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	rules    map[string]*Rule
	recorded []string
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Rule, error) {
	r, ok := m.rules[code]
	if !ok {
		return nil, ErrInvalidCoupon
	}
	return r, nil
}

func (m *mockRepo) RecordUsage(_ context.Context, _ int64, _, orderID string) error {
	m.recorded = append(m.recorded, orderID)
	return nil
}

func newValidator(now time.Time, rules ...*Rule) *RepoValidator {
	byCode := make(map[string]*Rule, len(rules))
	for _, r := range rules {
		byCode[r.Code] = r
	}
	v := NewRepoValidator(&mockRepo{rules: byCode})
	v.now = func() time.Time { return now }
	return v
}

func activeRule(code string, typ DiscountType, value string) *Rule {
	return &Rule{
		ID:           1,
		Code:         code,
		DiscountType: typ,
		Value:        decimal.RequireFromString(value),
		Active:       true,
	}
}

func TestValidate_UnknownCode(t *testing.T) {
	v := newValidator(time.Now())

	_, err := v.Validate(context.Background(), "NOPE", decimal.NewFromInt(100), "u1")
	require.ErrorIs(t, err, ErrInvalidCoupon)
}

func TestValidate_InactiveCode(t *testing.T) {
	rule := activeRule("OFF10", DiscountPercentage, "10")
	rule.Active = false
	v := newValidator(time.Now(), rule)

	_, err := v.Validate(context.Background(), "OFF10", decimal.NewFromInt(100), "u1")
	require.ErrorIs(t, err, ErrInvalidCoupon)
}

func TestValidate_NotYetActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rule := activeRule("SOON", DiscountPercentage, "10")
	from := now.Add(24 * time.Hour)
	rule.ValidFrom = &from
	v := newValidator(now, rule)

	_, err := v.Validate(context.Background(), "SOON", decimal.NewFromInt(100), "u1")
	require.ErrorIs(t, err, ErrCouponNotStarted)
}

func TestValidate_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rule := activeRule("LATE", DiscountPercentage, "10")
	until := now.Add(-time.Hour)
	rule.ValidUntil = &until
	v := newValidator(now, rule)

	_, err := v.Validate(context.Background(), "LATE", decimal.NewFromInt(100), "u1")
	require.ErrorIs(t, err, ErrCouponExpired)
}

func TestValidate_UsageLimitExhausted(t *testing.T) {
	rule := activeRule("RARE", DiscountPercentage, "10")
	limit := 5
	rule.UsageLimit = &limit
	rule.Uses = 5
	v := newValidator(time.Now(), rule)

	_, err := v.Validate(context.Background(), "RARE", decimal.NewFromInt(100), "u1")
	require.ErrorIs(t, err, ErrCouponUsageLimitReached)
}

func TestValidate_BelowMinimumPurchase(t *testing.T) {
	rule := activeRule("SAVE10", DiscountFixed, "1000")
	rule.MinPurchase = decimal.NewFromInt(20000)
	v := newValidator(time.Now(), rule)

	_, err := v.Validate(context.Background(), "SAVE10", decimal.NewFromInt(15000), "u1")

	var minErr *BelowMinimumError
	require.ErrorAs(t, err, &minErr)
	assert.Equal(t, "SAVE10", minErr.Code)
	assert.True(t, decimal.NewFromInt(20000).Equal(minErr.Minimum))
}

func TestValidate_PercentageDiscount(t *testing.T) {
	v := newValidator(time.Now(), activeRule("OFF25", DiscountPercentage, "25"))

	d, err := v.Validate(context.Background(), "OFF25", decimal.NewFromInt(200), "u1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(d.Amount), "got %s", d.Amount)
	assert.Equal(t, int64(1), d.CouponID)
}

func TestValidate_PercentageCappedAtMaxDiscount(t *testing.T) {
	rule := activeRule("OFF50", DiscountPercentage, "50")
	cap := decimal.NewFromInt(30)
	rule.MaxDiscount = &cap
	v := newValidator(time.Now(), rule)

	d, err := v.Validate(context.Background(), "OFF50", decimal.NewFromInt(200), "u1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30).Equal(d.Amount), "got %s", d.Amount)
}

func TestValidate_FixedDiscountMayExceedSubtotal(t *testing.T) {
	v := newValidator(time.Now(), activeRule("BIG", DiscountFixed, "500"))

	d, err := v.Validate(context.Background(), "BIG", decimal.NewFromInt(100), "u1")
	require.NoError(t, err)
	// Fixed discounts are returned as-is; the checkout clamps the total.
	assert.True(t, decimal.NewFromInt(500).Equal(d.Amount), "got %s", d.Amount)
}

func TestApply_UnsupportedType(t *testing.T) {
	_, err := Apply(&Rule{DiscountType: "bogus"}, decimal.NewFromInt(100))
	require.Error(t, err)
}
