// Package cartclient reaches the cart service over HTTP. It is the
// production implementation of the cart.Provider port, so every call can
// fail independently of the order service's own database.
package cartclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/storebit/checkout/internal/auth"
	"github.com/storebit/checkout/internal/domain/cart"
)

// Client calls the cart service's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	// serviceToken authenticates calls made outside a user request, such as
	// retried cart completions. Per-user calls forward the caller's token.
	serviceToken string
}

var _ cart.Provider = (*Client)(nil)

// New creates a Client for the cart service at baseURL.
func New(baseURL, serviceToken string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: 10 * time.Second},
		serviceToken: serviceToken,
	}
}

// ActiveCart fetches the authenticated user's active cart. The caller's
// bearer credential is forwarded from the request context; the cart service
// derives the user from it, so userID is only sanity-checked here.
func (c *Client) ActiveCart(ctx context.Context, userID string) (*cart.Cart, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/cart", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build cart request")
	}
	c.authorize(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call cart service")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, cart.ErrNoActiveCart
	default:
		return nil, errors.Errorf("cart service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read cart response")
	}

	fetched, err := decodeCart(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode cart response")
	}
	if fetched.UserID != "" && fetched.UserID != userID {
		return nil, errors.Errorf("cart service returned cart for user %s", fetched.UserID)
	}
	return fetched, nil
}

// Complete asks the cart service to finish the cart. The endpoint is
// idempotent, so retrying after a timeout is safe.
func (c *Client) Complete(ctx context.Context, cartID int64) error {
	url := fmt.Sprintf("%s/api/cart/%d/complete", c.baseURL, cartID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return errors.Wrap(err, "build complete request")
	}
	c.authorize(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "call cart service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("cart service returned %d", resp.StatusCode)
	}
	return nil
}

// authorize forwards the caller's bearer token when present, falling back to
// the order service's own credential.
func (c *Client) authorize(ctx context.Context, req *http.Request) {
	token := auth.TokenFromContext(ctx)
	if token == "" {
		token = c.serviceToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// decodeCart parses the cart service's JSON representation. Prices travel as
// strings to keep decimal values exact.
func decodeCart(data []byte) (*cart.Cart, error) {
	var c cart.Cart
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			id, err := d.Int64()
			c.ID = id
			return err
		case "user_id":
			s, err := d.Str()
			c.UserID = s
			return err
		case "status":
			s, err := d.Str()
			c.Status = cart.Status(s)
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d)
				if err != nil {
					return err
				}
				c.Items = append(c.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeCartItem(d *jx.Decoder) (cart.Item, error) {
	var item cart.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			id, err := d.Int64()
			item.ProductID = id
			return err
		case "quantity":
			q, err := d.Int()
			item.Quantity = q
			return err
		case "price":
			s, err := d.Str()
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(s)
			item.Price = price
			return err
		default:
			return d.Skip()
		}
	})
	return item, err
}
