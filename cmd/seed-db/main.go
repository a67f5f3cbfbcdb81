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

	"github.com/xenking/storefront-api/internal/repository"
)

const (
	upsertProductSQL = `INSERT INTO products (id, name, description, price, image, category, count_in_stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			image = EXCLUDED.image,
			category = EXCLUDED.category,
			count_in_stock = EXCLUDED.count_in_stock`

	upsertCouponSQL = `INSERT INTO coupons (id, code, description, discount_type, discount_value,
			maximum_discount, minimum_purchase, usage_limit, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			maximum_discount = EXCLUDED.maximum_discount,
			minimum_purchase = EXCLUDED.minimum_purchase,
			usage_limit = EXCLUDED.usage_limit,
			active = TRUE`

	upsertShippingCouponSQL = `INSERT INTO shipping_coupons (id, code, description, discount_type,
			discount_value, usage_limit, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			usage_limit = EXCLUDED.usage_limit,
			active = TRUE`
)

type productJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image"`
	Category     string          `json:"category"`
	CountInStock int             `json:"countInStock"`
}

type couponSeed struct {
	id           string
	code         string
	description  string
	discountType string
	value        decimal.Decimal
	maxDiscount  decimal.Decimal
	minPurchase  decimal.Decimal
	usageLimit   int
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

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedShippingCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed shipping coupons")
	}

	return nil
}

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
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.CountInStock,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding coupons")

	coupons := []couponSeed{
		{
			id:           "seed-welcome10",
			code:         "WELCOME10",
			description:  "10% off your first order, up to 40,000",
			discountType: "percentage",
			value:        decimal.NewFromInt(10),
			maxDiscount:  decimal.NewFromInt(40000),
		},
		{
			id:           "seed-save50k",
			code:         "SAVE50K",
			description:  "50,000 off orders from 300,000",
			discountType: "fixed",
			value:        decimal.NewFromInt(50000),
			minPurchase:  decimal.NewFromInt(300000),
			usageLimit:   500,
		},
	}

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertCouponSQL,
			c.id, c.code, c.description, c.discountType, c.value,
			c.maxDiscount, c.minPurchase, c.usageLimit,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code))
	}

	return nil
}

func seedShippingCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding shipping coupons")

	coupons := []couponSeed{
		{
			id:           "seed-freeship",
			code:         "FREESHIP",
			description:  "Free shipping on any order",
			discountType: "percentage",
			value:        decimal.NewFromInt(100),
			usageLimit:   1000,
		},
		{
			id:           "seed-ship50",
			code:         "SHIP50",
			description:  "50% off shipping",
			discountType: "percentage",
			value:        decimal.NewFromInt(50),
		},
	}

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertShippingCouponSQL,
			c.id, c.code, c.description, c.discountType, c.value, c.usageLimit,
		); err != nil {
			return errors.Wrapf(err, "upsert shipping coupon %s", c.code)
		}

		slog.Info("upserted shipping coupon", slog.String("code", c.code))
	}

	return nil
}
