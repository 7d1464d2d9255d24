// Package api exposes the checkout service's HTTP surface: order creation
// and order reads for the authenticated user.
package api

import (
	"net/http"

	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/storebit/checkout/internal/auth"
	"github.com/storebit/checkout/internal/domain/order"
)

// Handler carries the checkout service's dependencies.
type Handler struct {
	orderService *order.Service
	orders       order.Repository
	verifier     *auth.Verifier
	lg           *zap.Logger
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(orderService *order.Service, orders order.Repository, verifier *auth.Verifier, lg *zap.Logger) *Handler {
	return &Handler{
		orderService: orderService,
		orders:       orders,
		verifier:     verifier,
		lg:           lg,
	}
}

// Routes registers the API endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.Handle("POST /api/orders", h.authenticated(h.placeOrder))
	mux.Handle("GET /api/orders", h.authenticated(h.listOrders))
	mux.Handle("GET /api/orders/{id}", h.authenticated(h.getOrder))
}

// authenticated verifies the bearer credential and stores the user identity
// and raw token (for forwarding to the cart service) in the context.
func (h *Handler) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		userID, err := h.verifier.VerifyBearer(header)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := auth.WithUserID(r.Context(), userID)
		ctx = auth.WithToken(ctx, header[len("Bearer "):])
		next.ServeHTTP(w, r.WithContext(ctx))
	})
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
