package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storebit/checkout/internal/domain/cart"
	"github.com/storebit/checkout/internal/domain/coupon"
	"github.com/storebit/checkout/internal/domain/loyalty"
	"github.com/storebit/checkout/internal/domain/product"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyCart    = errors.New("active cart is empty")
	ErrInvalidTotal = errors.New("order total must be positive")
)

// ValidationError indicates a malformed checkout request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProductNotFoundError indicates a cart references a product that no longer
// exists in the catalog.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// PricingError indicates a cart item carries a missing or non-positive
// captured price. This is a data-integrity fault, not a user error.
type PricingError struct {
	ProductID int64
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("invalid captured price for product %d", e.ProductID)
}

// CreateOrderRequest holds the input for one checkout.
type CreateOrderRequest struct {
	UserID          string
	ShippingAddress string
	ShippingPhone   string
	PaymentMethod   string
	// CouponCode is optional; a rejected coupon does not abort the checkout.
	CouponCode string
	// RedeemPoints is optional; an unsatisfiable redemption aborts the checkout.
	RedeemPoints int64
}

// CreateOrderResult holds the outcome of a successful checkout.
type CreateOrderResult struct {
	Order *Order
	// CouponWarning carries the rejection reason when a supplied coupon was
	// not applied. Empty when no coupon was supplied or it applied cleanly.
	CouponWarning string
	// PointsEarned is the loyalty credit granted for this order.
	PointsEarned int64
}

// Service is the order-creation orchestrator. It sequences the cart fetch,
// stock validation, discount evaluation, order persistence, stock decrement,
// and post-order bookkeeping for one checkout.
//
// Consistency model: the order row and its items are strict (created
// atomically, rolled back when the stock decrement loses a race). Coupon
// usage, loyalty entries, and cart clearing are best-effort once the order
// is committed: failures are logged for reconciliation, never surfaced as a
// failed checkout.
type Service struct {
	carts    cart.Provider
	products product.Repository
	coupons  coupon.Validator
	usage    coupon.Repository
	points   loyalty.Ledger
	orders   Repository
	lg       *zap.Logger
}

// NewService creates the checkout orchestrator with its collaborator ports.
func NewService(
	carts cart.Provider,
	products product.Repository,
	coupons coupon.Validator,
	usage coupon.Repository,
	points loyalty.Ledger,
	orders Repository,
	lg *zap.Logger,
) *Service {
	return &Service{
		carts:    carts,
		products: products,
		coupons:  coupons,
		usage:    usage,
		points:   points,
		orders:   orders,
		lg:       lg,
	}
}

// CreateOrder turns the user's active cart into a persisted order.
//
// All validation (cart contents, captured prices, product existence, stock
// availability, loyalty balance) happens before the first write. The stock
// decrement itself is a conditional atomic update, so a checkout that loses
// the check-then-decrement race is rolled back instead of overselling.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, &ValidationError{Field: "shipping_address", Reason: "must not be empty"}
	}
	if req.RedeemPoints < 0 {
		return nil, &ValidationError{Field: "use_loyalty_points", Reason: "must not be negative"}
	}

	// Step 1: fetch the active cart across the service boundary.
	c, err := s.carts.ActiveCart(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, cart.ErrNoActiveCart) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "fetch cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Step 2: per-item integrity checks, all before any write.
	ids := make([]int64, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	for _, item := range c.Items {
		if item.Quantity <= 0 || !item.Price.IsPositive() {
			return nil, &PricingError{ProductID: item.ProductID}
		}
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if item.Quantity > p.StockQuantity {
			return nil, &product.InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: p.StockQuantity,
			}
		}
	}

	// Step 3: subtotal over the captured cart prices.
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !subtotal.IsPositive() {
		return nil, ErrInvalidTotal
	}

	// Step 4: optional coupon. Rejections never abort the checkout; the
	// reason is surfaced as a warning instead.
	var (
		applied       *coupon.Discount
		couponWarning string
	)
	couponDiscount := decimal.Zero
	if req.CouponCode != "" {
		d, err := s.coupons.Validate(ctx, req.CouponCode, subtotal, req.UserID)
		switch {
		case err == nil:
			applied = d
			couponDiscount = d.Amount
		case isCouponRejection(err):
			couponWarning = err.Error()
			s.lg.Info("coupon rejected, proceeding without discount",
				zap.String("code", req.CouponCode),
				zap.String("user_id", req.UserID),
				zap.String("reason", err.Error()))
		default:
			return nil, errors.Wrap(err, "validate coupon")
		}
	}

	// Step 5: optional loyalty redemption. Unlike a coupon, a redemption the
	// user cannot cover is fatal: they explicitly asked to pay less.
	loyaltyDiscount := decimal.Zero
	if req.RedeemPoints > 0 {
		balance, err := s.points.Balance(ctx, req.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "check loyalty balance")
		}
		if balance < req.RedeemPoints {
			return nil, &loyalty.InsufficientPointsError{
				Requested: req.RedeemPoints,
				Balance:   balance,
			}
		}
		loyaltyDiscount = loyalty.RedeemValue(req.RedeemPoints)
	}

	// Step 6: final total, clamped at zero.
	totalDiscount := couponDiscount.Add(loyaltyDiscount)
	total := subtotal.Sub(totalDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	// Steps 7, 8, 11: order header, items, and the initial tracking entry in
	// one local transaction.
	items := make([]Item, len(c.Items))
	for i, item := range c.Items {
		items[i] = Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Items:           items,
		Total:           total,
		Discount:        totalDiscount.Round(2),
		CouponCode:      appliedCode(applied),
		ShippingAddress: req.ShippingAddress,
		ShippingPhone:   req.ShippingPhone,
		PaymentMethod:   req.PaymentMethod,
		Status:          StatusPending,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	// Step 9: conditional stock decrement. Validation passed above, but a
	// concurrent checkout may have drained stock since; the decrement is the
	// authoritative check. A zero-row update rolls the order back.
	if err := s.decrementStock(ctx, o, c.Items); err != nil {
		return nil, err
	}

	// Steps 10-14 are best-effort bookkeeping against a committed order:
	// failures are logged with the order id and reconciled out of band.

	if applied != nil {
		if err := s.usage.RecordUsage(ctx, applied.CouponID, req.UserID, o.ID); err != nil {
			s.lg.Error("record coupon usage failed",
				zap.String("order_id", o.ID),
				zap.String("code", applied.Code),
				zap.Error(err))
		}
	}

	if req.RedeemPoints > 0 {
		if err := s.points.Redeem(ctx, req.UserID, req.RedeemPoints, o.ID); err != nil {
			s.lg.Error("loyalty redemption failed",
				zap.String("order_id", o.ID),
				zap.Int64("points", req.RedeemPoints),
				zap.Error(err))
		}
	}

	earned, err := s.points.Earn(ctx, req.UserID, o.ID, total)
	if err != nil {
		s.lg.Error("loyalty earn failed",
			zap.String("order_id", o.ID),
			zap.Error(err))
		earned = 0
	}

	if err := s.carts.Complete(ctx, c.ID); err != nil {
		s.lg.Error("cart completion failed",
			zap.String("order_id", o.ID),
			zap.Int64("cart_id", c.ID),
			zap.Error(err))
	}

	return &CreateOrderResult{
		Order:         o,
		CouponWarning: couponWarning,
		PointsEarned:  earned,
	}, nil
}

// decrementStock applies the conditional decrement for every line item.
// When an item loses the race it restores the decrements already applied,
// deletes the order, and returns the stock error.
func (s *Service) decrementStock(ctx context.Context, o *Order, items []cart.Item) error {
	for i, item := range items {
		err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err == nil {
			continue
		}

		for _, done := range items[:i] {
			if rerr := s.products.RestoreStock(ctx, done.ProductID, done.Quantity); rerr != nil {
				s.lg.Error("stock restore failed during rollback",
					zap.String("order_id", o.ID),
					zap.Int64("product_id", done.ProductID),
					zap.Error(rerr))
			}
		}
		if derr := s.orders.Delete(ctx, o.ID); derr != nil {
			s.lg.Error("order rollback failed",
				zap.String("order_id", o.ID),
				zap.Error(derr))
		}

		var stockErr *product.InsufficientStockError
		if errors.As(err, &stockErr) {
			return stockErr
		}
		return errors.Wrapf(err, "decrement stock for product %d", item.ProductID)
	}
	return nil
}

// isCouponRejection reports whether err is a coupon eligibility rejection,
// as opposed to an infrastructure failure.
func isCouponRejection(err error) bool {
	var minErr *coupon.BelowMinimumError
	return errors.Is(err, coupon.ErrInvalidCoupon) ||
		errors.Is(err, coupon.ErrCouponNotStarted) ||
		errors.Is(err, coupon.ErrCouponExpired) ||
		errors.Is(err, coupon.ErrCouponUsageLimitReached) ||
		errors.As(err, &minErr)
}

func appliedCode(d *coupon.Discount) string {
	if d == nil {
		return ""
	}
	return d.Code
}
