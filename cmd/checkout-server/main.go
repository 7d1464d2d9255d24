// Command checkout-server runs the order service: it turns a user's active
// cart into a persisted order, applying coupons and loyalty points along the
// way.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/storebit/checkout/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}
		return appkg.RunCheckout(ctx, lg, m, cfg)
	})
}
