// Command seed-db applies the schema and loads demo data: catalog products,
// a handful of coupon rules, and starting loyalty balances for test users.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/storebit/checkout/internal/storage/postgres"
)

type productJSON struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
}

// couponSeed mirrors one row of the coupons table. Pointer fields stay NULL
// when nil.
type couponSeed struct {
	code         string
	discountType string
	value        decimal.Decimal
	minPurchase  decimal.Decimal
	maxDiscount  *decimal.Decimal
	usageLimit   *int
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedLoyalty(ctx, pool); err != nil {
		return errors.Wrap(err, "seed loyalty balances")
	}

	return nil
}

const upsertProductSQL = `
INSERT INTO products (id, name, price, stock_quantity)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, price = EXCLUDED.price, stock_quantity = EXCLUDED.stock_quantity`

// Seeded products carry fixed ids, so bump the sequence past them.
const bumpProductSeqSQL = `
SELECT setval(pg_get_serial_sequence('products', 'id'), (SELECT MAX(id) FROM products))`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Price, p.StockQuantity); err != nil {
			return errors.Wrapf(err, "upsert product %d", p.ID)
		}

		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("name", p.Name))
	}

	if _, err := pool.Exec(ctx, bumpProductSeqSQL); err != nil {
		return errors.Wrap(err, "bump products sequence")
	}

	return nil
}

const upsertCouponSQL = `
INSERT INTO coupons (code, discount_type, discount_value, min_purchase_amount,
                     max_discount_amount, usage_limit, active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
ON CONFLICT (code) DO UPDATE
SET discount_type       = EXCLUDED.discount_type,
    discount_value      = EXCLUDED.discount_value,
    min_purchase_amount = EXCLUDED.min_purchase_amount,
    max_discount_amount = EXCLUDED.max_discount_amount,
    usage_limit         = EXCLUDED.usage_limit,
    active              = TRUE`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding coupons")

	cap50k := decimal.NewFromInt(50_000)
	hundredUses := 100

	coupons := []couponSeed{
		{
			code:         "SAVE10",
			discountType: "percentage",
			value:        decimal.NewFromInt(10),
			minPurchase:  decimal.NewFromInt(50_000),
		},
		{
			code:         "WELCOME15",
			discountType: "percentage",
			value:        decimal.NewFromInt(15),
			maxDiscount:  &cap50k,
			usageLimit:   &hundredUses,
		},
		{
			code:         "FLAT5000",
			discountType: "fixed",
			value:        decimal.NewFromInt(5_000),
			minPurchase:  decimal.NewFromInt(20_000),
		},
	}

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertCouponSQL,
			c.code, c.discountType, c.value, c.minPurchase, c.maxDiscount, c.usageLimit,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code))
	}

	return nil
}

const upsertLoyaltySQL = `
INSERT INTO loyalty_points (user_id, balance, total_earned)
VALUES ($1, $2, $2)
ON CONFLICT (user_id) DO UPDATE
SET balance = EXCLUDED.balance, total_earned = EXCLUDED.total_earned`

func seedLoyalty(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding loyalty balances")

	balances := map[string]int64{
		"demo-user":  20,
		"demo-admin": 100,
	}

	for userID, balance := range balances {
		if _, err := pool.Exec(ctx, upsertLoyaltySQL, userID, balance); err != nil {
			return errors.Wrapf(err, "upsert loyalty balance for %s", userID)
		}

		slog.Info("upserted loyalty balance", slog.String("user_id", userID), slog.Int64("balance", balance))
	}

	return nil
}
