package cartclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storebit/checkout/internal/auth"
	"github.com/storebit/checkout/internal/domain/cart"
)

func TestActiveCart_DecodesResponse(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/cart", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 7,
			"user_id": "u1",
			"status": "active",
			"items": [
				{"product_id": 42, "quantity": 3, "price": "10000"},
				{"product_id": 9, "quantity": 1, "price": "249.99"}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "svc-token")
	ctx := auth.WithToken(context.Background(), "user-token")

	got, err := c.ActiveCart(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, cart.StatusActive, got.Status)
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(42), got.Items[0].ProductID)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(10000).Equal(got.Items[0].Price))
	assert.True(t, decimal.RequireFromString("249.99").Equal(got.Items[1].Price))
}

func TestActiveCart_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "svc-token")
	_, err := c.ActiveCart(context.Background(), "u1")
	require.ErrorIs(t, err, cart.ErrNoActiveCart)
}

func TestActiveCart_WrongUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id": 1, "user_id": "someone-else", "status": "active", "items": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "svc-token")
	_, err := c.ActiveCart(context.Background(), "u1")
	require.Error(t, err)
}

func TestComplete_UsesServiceTokenWithoutRequestToken(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "svc-token")
	require.NoError(t, c.Complete(context.Background(), 7))
	assert.Equal(t, "Bearer svc-token", gotAuth)
	assert.Equal(t, "/api/cart/7/complete", gotPath)
}

func TestComplete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "svc-token")
	require.Error(t, c.Complete(context.Background(), 7))
}
