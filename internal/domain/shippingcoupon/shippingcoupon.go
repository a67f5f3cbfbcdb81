// Package shippingcoupon implements discount codes applied against the flat
// shipping fee rather than the cart subtotal. The shape mirrors the cart
// coupon but carries no minimum-purchase threshold or user allowlist.
package shippingcoupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported discount strategies.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no shipping coupon exists for the code or id.
	ErrNotFound = errors.New("shipping coupon not found")
	// ErrNotUsable is returned when a shipping coupon is inactive or outside
	// its validity window.
	ErrNotUsable = errors.New("shipping coupon expired or inactive")
	// ErrUsageLimitReached is returned when the coupon has exhausted its uses.
	ErrUsageLimitReached = errors.New("shipping coupon usage limit reached")
	// ErrCodeExists is returned when creating a coupon with a taken code.
	ErrCodeExists = errors.New("shipping coupon code already exists")
)

// Coupon is a discount code for the shipping fee.
type Coupon struct {
	ID              string
	Code            string
	Description     string
	DiscountType    DiscountType
	DiscountValue   decimal.Decimal
	MaximumDiscount decimal.Decimal
	UsageLimit      int
	UsageCount      int
	Active          bool
	StartsAt        *time.Time
	EndsAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Usable reports whether the coupon can be redeemed at the given moment.
func (c *Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return false
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return false
	}
	return true
}

// RemainingUses returns how many redemptions are left; false means unlimited.
func (c *Coupon) RemainingUses() (int, bool) {
	if c.UsageLimit == 0 {
		return 0, false
	}
	left := c.UsageLimit - c.UsageCount
	if left < 0 {
		left = 0
	}
	return left, true
}

// Repository provides persistence for shipping coupons. IncrementUsage is
// conditional at the store, as for cart coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	GetByID(ctx context.Context, id string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	ListAvailable(ctx context.Context, now time.Time) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
	IncrementUsage(ctx context.Context, id string) error
}
