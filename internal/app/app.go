// Package app wires configuration, storage, domain services, and HTTP
// surfaces into runnable servers.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/storebit/checkout/internal/api"
	"github.com/storebit/checkout/internal/auth"
	"github.com/storebit/checkout/internal/cartapi"
	"github.com/storebit/checkout/internal/cartclient"
	"github.com/storebit/checkout/internal/domain/coupon"
	"github.com/storebit/checkout/internal/domain/order"
	"github.com/storebit/checkout/internal/storage/postgres"
	"github.com/storebit/checkout/pkg/health"
	"github.com/storebit/checkout/pkg/httpmiddleware"
)

// RunCheckout creates the checkout server's dependencies, starts the HTTP
// server, and handles graceful shutdown. It is the single wiring point for
// the order service.
func RunCheckout(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing checkout server", zap.String("addr", cfg.Addr))

	pool, healthSvc, err := setupStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	loyaltyRepo := postgres.NewLoyaltyRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// The cart lives behind its own service; all cart access goes through
	// the HTTP client.
	carts := cartclient.New(cfg.CartBaseURL, cfg.ServiceToken)

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo)
	orderService := order.NewService(
		carts,
		productRepo,
		couponValidator,
		couponRepo,
		loyaltyRepo,
		orderRepo,
		lg.Named("checkout"),
	)

	// HTTP surface.
	verifier := auth.NewVerifier([]byte(cfg.AuthSecret))
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	api.NewHandler(orderService, orderRepo, verifier, lg.Named("api")).Routes(mux)

	return serve(ctx, lg, healthSvc, cfg, wrapMux(ctx, mux, "checkout-api", m, cfg))
}

// RunCart creates the cart server's dependencies, starts the HTTP server,
// and handles graceful shutdown.
func RunCart(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing cart server", zap.String("addr", cfg.Addr))

	pool, healthSvc, err := setupStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.NewCartStore(pool)
	verifier := auth.NewVerifier([]byte(cfg.AuthSecret))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	cartapi.NewHandler(store, verifier, lg.Named("cartapi")).Routes(mux)

	return serve(ctx, lg, healthSvc, cfg, wrapMux(ctx, mux, "cart-api", m, cfg))
}

// setupStorage connects the database pool, applies migrations, and starts
// the health service with a postgres readiness check.
func setupStorage(ctx context.Context, cfg *Config) (*pgxpool.Pool, *health.Health, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create db pool")
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	return pool, healthSvc, nil
}

// wrapMux applies the shared middleware stack around the mux.
func wrapMux(ctx context.Context, mux *http.ServeMux, serviceName string, m *app.Telemetry, cfg *Config) http.Handler {
	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument(serviceName, m),
		httpmiddleware.Metrics(serviceName, m),
		httpmiddleware.LogRequests(),
	)
}

// serve runs the HTTP server until ctx is cancelled, then drains and shuts
// down gracefully.
func serve(ctx context.Context, lg *zap.Logger, healthSvc *health.Health, cfg *Config, handler http.Handler) error {
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           handler,
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
