package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-api/internal/domain/shippingcoupon"
)

const (
	shippingCouponColumns = `id, code, description, discount_type, discount_value,
		maximum_discount, usage_limit, usage_count, active, starts_at, ends_at,
		created_at, updated_at`

	findShippingCouponByCodeSQL = `SELECT ` + shippingCouponColumns + `
		FROM shipping_coupons WHERE UPPER(code) = UPPER($1)`

	getShippingCouponSQL = `SELECT ` + shippingCouponColumns + `
		FROM shipping_coupons WHERE id = $1`

	listShippingCouponsSQL = `SELECT ` + shippingCouponColumns + `
		FROM shipping_coupons ORDER BY created_at DESC`

	listAvailableShippingCouponsSQL = `SELECT ` + shippingCouponColumns + `
		FROM shipping_coupons
		WHERE active = TRUE
		  AND (starts_at IS NULL OR starts_at <= $1)
		  AND (ends_at IS NULL OR ends_at >= $1)
		  AND (usage_limit = 0 OR usage_count < usage_limit)
		ORDER BY created_at DESC`

	createShippingCouponSQL = `INSERT INTO shipping_coupons (id, code, description,
		discount_type, discount_value, maximum_discount, usage_limit, usage_count,
		active, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateShippingCouponSQL = `UPDATE shipping_coupons SET code = $2, description = $3,
		discount_type = $4, discount_value = $5, maximum_discount = $6,
		usage_limit = $7, active = $8, starts_at = $9, ends_at = $10,
		updated_at = now()
		WHERE id = $1`

	deleteShippingCouponSQL = `DELETE FROM shipping_coupons WHERE id = $1`

	incrementShippingCouponUsageSQL = `UPDATE shipping_coupons
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`
)

var _ shippingcoupon.Repository = (*ShippingCouponRepository)(nil)

// ShippingCouponRepository implements shippingcoupon.Repository backed by
// PostgreSQL.
type ShippingCouponRepository struct {
	pool *pgxpool.Pool
}

// NewShippingCouponRepository returns a repository that uses the given pool.
func NewShippingCouponRepository(pool *pgxpool.Pool) *ShippingCouponRepository {
	return &ShippingCouponRepository{pool: pool}
}

func (r *ShippingCouponRepository) FindByCode(ctx context.Context, code string) (*shippingcoupon.Coupon, error) {
	return r.one(ctx, findShippingCouponByCodeSQL, code)
}

func (r *ShippingCouponRepository) GetByID(ctx context.Context, id string) (*shippingcoupon.Coupon, error) {
	return r.one(ctx, getShippingCouponSQL, id)
}

func (r *ShippingCouponRepository) one(ctx context.Context, sql string, arg any) (*shippingcoupon.Coupon, error) {
	rows, err := q(ctx, r.pool).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying shipping coupon: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanShippingCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shippingcoupon.ErrNotFound
		}
		return nil, fmt.Errorf("querying shipping coupon: %w", err)
	}
	return &c, nil
}

func (r *ShippingCouponRepository) List(ctx context.Context) ([]shippingcoupon.Coupon, error) {
	rows, err := q(ctx, r.pool).Query(ctx, listShippingCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing shipping coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanShippingCoupon)
}

func (r *ShippingCouponRepository) ListAvailable(ctx context.Context, now time.Time) ([]shippingcoupon.Coupon, error) {
	rows, err := q(ctx, r.pool).Query(ctx, listAvailableShippingCouponsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing available shipping coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanShippingCoupon)
}

func (r *ShippingCouponRepository) Create(ctx context.Context, c *shippingcoupon.Coupon) error {
	_, err := q(ctx, r.pool).Exec(ctx, createShippingCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MaximumDiscount, c.UsageLimit, c.UsageCount, c.Active, c.StartsAt, c.EndsAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shippingcoupon.ErrCodeExists
		}
		return fmt.Errorf("creating shipping coupon %q: %w", c.Code, err)
	}
	return nil
}

func (r *ShippingCouponRepository) Update(ctx context.Context, c *shippingcoupon.Coupon) error {
	tag, err := q(ctx, r.pool).Exec(ctx, updateShippingCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MaximumDiscount, c.UsageLimit, c.Active, c.StartsAt, c.EndsAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shippingcoupon.ErrCodeExists
		}
		return fmt.Errorf("updating shipping coupon %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return shippingcoupon.ErrNotFound
	}
	return nil
}

func (r *ShippingCouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := q(ctx, r.pool).Exec(ctx, deleteShippingCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting shipping coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shippingcoupon.ErrNotFound
	}
	return nil
}

func (r *ShippingCouponRepository) IncrementUsage(ctx context.Context, id string) error {
	tag, err := q(ctx, r.pool).Exec(ctx, incrementShippingCouponUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage for shipping coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shippingcoupon.ErrUsageLimitReached
	}
	return nil
}

func scanShippingCoupon(row pgx.CollectableRow) (shippingcoupon.Coupon, error) {
	var (
		c            shippingcoupon.Coupon
		discountType string
		usageLimit   int32
		usageCount   int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.DiscountValue,
		&c.MaximumDiscount, &usageLimit, &usageCount, &c.Active,
		&c.StartsAt, &c.EndsAt, &c.CreatedAt, &c.UpdatedAt,
	)
	c.DiscountType = shippingcoupon.DiscountType(discountType)
	c.UsageLimit = int(usageLimit)
	c.UsageCount = int(usageCount)
	return c, err
}
