package api

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/storebit/checkout/internal/auth"
	"github.com/storebit/checkout/internal/domain/loyalty"
	"github.com/storebit/checkout/internal/domain/order"
	"github.com/storebit/checkout/internal/domain/product"
)

// placeOrderRequest is the decoded POST /api/orders body.
type placeOrderRequest struct {
	ShippingAddress string
	ShippingPhone   string
	PaymentMethod   string
	CouponCode      string
	RedeemPoints    int64
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	req, err := decodePlaceOrderRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := h.orderService.CreateOrder(r.Context(), order.CreateOrderRequest{
		UserID:          auth.UserIDFromContext(r.Context()),
		ShippingAddress: req.ShippingAddress,
		ShippingPhone:   req.ShippingPhone,
		PaymentMethod:   req.PaymentMethod,
		CouponCode:      req.CouponCode,
		RedeemPoints:    req.RedeemPoints,
	})
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		encodeOrder(e, result.Order)
		if result.CouponWarning != "" {
			e.FieldStart("coupon_warning")
			e.Str(result.CouponWarning)
		}
		e.FieldStart("points_earned")
		e.Int64(result.PointsEarned)
		e.ObjEnd()
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	os, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		h.lg.Error("list orders failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("orders")
		e.ArrStart()
		for i := range os {
			encodeOrder(e, &os[i])
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	// Orders are only visible to their owner.
	if o.UserID != auth.UserIDFromContext(r.Context()) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		encodeOrder(e, o)
		e.ObjEnd()
	})
}

// writeOrderError maps checkout errors to HTTP responses. Pre-write
// validation failures are client errors; anything unexpected is a 500 with
// the detail kept in the logs.
func (h *Handler) writeOrderError(w http.ResponseWriter, err error) {
	var (
		vErr     *order.ValidationError
		pnfErr   *order.ProductNotFoundError
		priceErr *order.PricingError
		stockErr *product.InsufficientStockError
		ptsErr   *loyalty.InsufficientPointsError
	)

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrInvalidTotal):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &pnfErr):
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
	case errors.As(err, &priceErr):
		writeError(w, http.StatusUnprocessableEntity, priceErr.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusUnprocessableEntity, stockErr.Error())
	case errors.As(err, &ptsErr):
		writeError(w, http.StatusUnprocessableEntity, ptsErr.Error())
	default:
		h.lg.Error("checkout failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodePlaceOrderRequest(data []byte) (placeOrderRequest, error) {
	var req placeOrderRequest
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "shipping_address":
			s, err := d.Str()
			req.ShippingAddress = s
			return err
		case "shipping_phone":
			s, err := d.Str()
			req.ShippingPhone = s
			return err
		case "payment_method":
			s, err := d.Str()
			req.PaymentMethod = s
			return err
		case "coupon_code":
			s, err := d.Str()
			req.CouponCode = s
			return err
		case "use_loyalty_points":
			n, err := d.Int64()
			req.RedeemPoints = n
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

// encodeOrder writes the order JSON. Money fields travel as strings so
// decimal values stay exact on the wire.
func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("total")
	e.Str(o.Total.String())
	e.FieldStart("discount")
	e.Str(o.Discount.String())
	if o.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(o.CouponCode)
	}
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(item.ProductID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("price")
		e.Str(item.Price.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	if !o.CreatedAt.IsZero() {
		e.FieldStart("created_at")
		e.Str(o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	}
	e.ObjEnd()
}
