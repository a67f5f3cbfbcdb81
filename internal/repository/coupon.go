package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-api/internal/domain/coupon"
)

const (
	couponColumns = `id, code, description, discount_type, discount_value,
		maximum_discount, minimum_purchase, usage_limit, usage_count, active,
		starts_at, ends_at, allowed_user_ids, created_at, updated_at`

	findCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	getCouponSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC`

	listAvailableCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE active = TRUE
		  AND (starts_at IS NULL OR starts_at <= $1)
		  AND (ends_at IS NULL OR ends_at >= $1)
		  AND (usage_limit = 0 OR usage_count < usage_limit)
		ORDER BY created_at DESC`

	createCouponSQL = `INSERT INTO coupons (id, code, description, discount_type,
		discount_value, maximum_discount, minimum_purchase, usage_limit, usage_count,
		active, starts_at, ends_at, allowed_user_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	updateCouponSQL = `UPDATE coupons SET code = $2, description = $3,
		discount_type = $4, discount_value = $5, maximum_discount = $6,
		minimum_purchase = $7, usage_limit = $8, active = $9, starts_at = $10,
		ends_at = $11, allowed_user_ids = $12, updated_at = now()
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	// Increment only while under the limit; zero rows affected means a
	// concurrent redemption took the last use.
	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code, case-insensitively.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.one(ctx, findCouponByCodeSQL, code)
}

func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.one(ctx, getCouponSQL, id)
}

func (r *CouponRepository) one(ctx context.Context, sql string, arg any) (*coupon.Coupon, error) {
	rows, err := q(ctx, r.pool).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying coupon: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("querying coupon: %w", err)
	}
	return &c, nil
}

func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := q(ctx, r.pool).Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

func (r *CouponRepository) ListAvailable(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	rows, err := q(ctx, r.pool).Query(ctx, listAvailableCouponsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing available coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := q(ctx, r.pool).Exec(ctx, createCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MaximumDiscount, c.MinimumPurchase, c.UsageLimit, c.UsageCount,
		c.Active, c.StartsAt, c.EndsAt, c.AllowedUserIDs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeExists
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := q(ctx, r.pool).Exec(ctx, updateCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MaximumDiscount, c.MinimumPurchase, c.UsageLimit, c.Active,
		c.StartsAt, c.EndsAt, c.AllowedUserIDs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeExists
		}
		return fmt.Errorf("updating coupon %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := q(ctx, r.pool).Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// IncrementUsage consumes one use via a conditional UPDATE, so the limit
// holds even when redemptions race.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id string) error {
	tag, err := q(ctx, r.pool).Exec(ctx, incrementCouponUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitReached
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		usageLimit   int32
		usageCount   int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.DiscountValue,
		&c.MaximumDiscount, &c.MinimumPurchase, &usageLimit, &usageCount,
		&c.Active, &c.StartsAt, &c.EndsAt, &c.AllowedUserIDs,
		&c.CreatedAt, &c.UpdatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.UsageLimit = int(usageLimit)
	c.UsageCount = int(usageCount)
	return c, err
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
