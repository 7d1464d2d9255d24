//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestCart_NoAuth(t *testing.T) {
	resp := doGet(t, cartURL, "/api/cart", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCart_NotFoundBeforeFirstItem(t *testing.T) {
	resp := doGet(t, cartURL, "/api/cart", bearerFor(t, "it-cart-fresh"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCart_AddItemCapturesPrice(t *testing.T) {
	bearer := bearerFor(t, "it-cart-add")
	addToCart(t, bearer, 3, 2) // USB-C Dock, 28000

	resp := doGet(t, cartURL, "/api/cart", bearer)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	c := decodeJSON[cartResponse](t, resp)
	if c.UserID != "it-cart-add" {
		t.Errorf("user_id: got %q, want %q", c.UserID, "it-cart-add")
	}
	if c.Status != "active" {
		t.Errorf("status: got %q, want %q", c.Status, "active")
	}
	if len(c.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(c.Items))
	}
	if c.Items[0].Quantity != 2 {
		t.Errorf("quantity: got %d, want 2", c.Items[0].Quantity)
	}
	if c.Items[0].Price != "28000" {
		t.Errorf("price: got %q, want %q", c.Items[0].Price, "28000")
	}
}

func TestCart_AddSameItemAccumulates(t *testing.T) {
	bearer := bearerFor(t, "it-cart-accumulate")
	addToCart(t, bearer, 5, 1)
	addToCart(t, bearer, 5, 2)

	resp := doGet(t, cartURL, "/api/cart", bearer)
	defer resp.Body.Close()

	c := decodeJSON[cartResponse](t, resp)
	if len(c.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(c.Items))
	}
	if c.Items[0].Quantity != 3 {
		t.Errorf("quantity: got %d, want 3", c.Items[0].Quantity)
	}
}

func TestCart_AddUnknownProduct(t *testing.T) {
	bearer := bearerFor(t, "it-cart-unknown")

	resp := doPost(t, cartURL, "/api/cart/items", bearer, addItemRequest{ProductID: 999, Quantity: 1})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCart_CompleteIsIdempotent(t *testing.T) {
	bearer := bearerFor(t, "it-cart-complete")
	addToCart(t, bearer, 7, 1)

	resp := doGet(t, cartURL, "/api/cart", bearer)
	c := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	first := doPost(t, cartURL, "/api/cart/"+itoa(c.ID)+"/complete", bearer, nil)
	defer first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first complete: expected 200, got %d", first.StatusCode)
	}

	second := doPost(t, cartURL, "/api/cart/"+itoa(c.ID)+"/complete", bearer, nil)
	defer second.Body.Close()
	if second.StatusCode != http.StatusOK {
		t.Fatalf("second complete: expected 200, got %d", second.StatusCode)
	}
}
