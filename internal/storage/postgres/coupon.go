package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/storebit/checkout/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_type, discount_value,
			min_purchase_amount, max_discount_amount, usage_limit, used_count,
			valid_from, valid_until, active
		FROM coupons WHERE code = UPPER($1)`

	insertCouponUsageSQL = `INSERT INTO coupon_usage (coupon_id, user_id, order_id)
		VALUES ($1, $2, $3)`

	incrementCouponUsesSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// RecordUsage appends the usage row and bumps used_count in one transaction.
func (r *CouponRepository) RecordUsage(ctx context.Context, couponID int64, userID, orderID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning coupon usage tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, insertCouponUsageSQL, couponID, userID, orderID); err != nil {
		return fmt.Errorf("inserting coupon usage: %w", err)
	}
	if _, err := tx.Exec(ctx, incrementCouponUsesSQL, couponID); err != nil {
		return fmt.Errorf("incrementing coupon uses: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing coupon usage: %w", err)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule        coupon.Rule
		maxDiscount *decimal.Decimal
		usageLimit  *int32
		validFrom   *time.Time
		validUntil  *time.Time
	)
	err := row.Scan(
		&rule.ID, &rule.Code, &rule.DiscountType, &rule.Value,
		&rule.MinPurchase, &maxDiscount, &usageLimit, &rule.Uses,
		&validFrom, &validUntil, &rule.Active,
	)
	if err != nil {
		return rule, err
	}

	rule.MaxDiscount = maxDiscount
	if usageLimit != nil {
		limit := int(*usageLimit)
		rule.UsageLimit = &limit
	}
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	return rule, nil
}
