// Package cartapi exposes the cart service's HTTP surface: active-cart
// reads, item mutations, and the idempotent completion endpoint consumed by
// the order service.
package cartapi

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/storebit/checkout/internal/auth"
	"github.com/storebit/checkout/internal/domain/cart"
)

// Store is what the cart handlers need from the cart storage layer.
type Store interface {
	ActiveCart(ctx context.Context, userID string) (*cart.Cart, error)
	Complete(ctx context.Context, cartID int64) error
	AddItem(ctx context.Context, userID string, productID int64, quantity int) error
}

// Handler carries the cart service's dependencies.
type Handler struct {
	store    Store
	verifier *auth.Verifier
	lg       *zap.Logger
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(store Store, verifier *auth.Verifier, lg *zap.Logger) *Handler {
	return &Handler{store: store, verifier: verifier, lg: lg}
}

// Routes registers the cart endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.Handle("GET /api/cart", h.authenticated(h.getCart))
	mux.Handle("POST /api/cart/items", h.authenticated(h.addItem))
	mux.Handle("POST /api/cart/{id}/complete", h.authenticated(h.completeCart))
}

func (h *Handler) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.verifier.VerifyBearer(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	c, err := h.store.ActiveCart(r.Context(), userID)
	if err != nil {
		if errors.Is(err, cart.ErrNoActiveCart) {
			writeError(w, http.StatusNotFound, "no active cart")
			return
		}
		h.lg.Error("get cart failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCart(e, c)
	})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	var (
		productID int64
		quantity  int
	)
	d := jx.DecodeBytes(body)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			id, err := d.Int64()
			productID = id
			return err
		case "quantity":
			q, err := d.Int()
			quantity = q
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if productID <= 0 || quantity <= 0 {
		writeError(w, http.StatusBadRequest, "product_id and quantity must be positive")
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	if err := h.store.AddItem(r.Context(), userID, productID, quantity); err != nil {
		h.lg.Error("add cart item failed",
			zap.String("user_id", userID),
			zap.Int64("product_id", productID),
			zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) completeCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cart id")
		return
	}

	if err := h.store.Complete(r.Context(), cartID); err != nil {
		h.lg.Error("complete cart failed", zap.Int64("cart_id", cartID), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("status")
		e.Str(string(cart.StatusCompleted))
		e.ObjEnd()
	})
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("user_id")
	e.Str(c.UserID)
	e.FieldStart("status")
	e.Str(string(c.Status))
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range c.Items {
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
	e.ObjEnd()
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}
