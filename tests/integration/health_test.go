//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestHealthEndpoints(t *testing.T) {
	for _, tt := range []struct {
		name string
		base string
		path string
	}{
		{"checkout livez", checkoutURL, "/livez"},
		{"checkout readyz", checkoutURL, "/readyz"},
		{"cart livez", cartURL, "/livez"},
		{"cart readyz", cartURL, "/readyz"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			resp := doGet(t, tt.base, tt.path, "")
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}

			body := decodeJSON[healthResponse](t, resp)
			if body.Status != "ok" {
				t.Fatalf("expected status ok, got %q", body.Status)
			}
		})
	}
}
