package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the cart subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed monetary amount from the cart subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no coupon exists for the requested code or id.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotUsable is returned when a coupon is inactive or outside its validity window.
	ErrNotUsable = errors.New("coupon expired or inactive")
	// ErrUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrUserNotEligible is returned when a restricted coupon is used by a user
	// outside its allowlist.
	ErrUserNotEligible = errors.New("user not eligible for this coupon")
	// ErrCodeExists is returned when creating or renaming a coupon to a code
	// that is already taken.
	ErrCodeExists = errors.New("coupon code already exists")
)

// BelowMinimumError indicates the cart subtotal does not reach the coupon's
// minimum purchase threshold.
type BelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("cart total below minimum purchase of %s", e.Minimum)
}

// Coupon is a discount code applied against the cart item subtotal.
//
// MaximumDiscount caps percentage discounts only; the zero value means no cap.
// UsageLimit zero means unlimited. An empty AllowedUserIDs list means the
// coupon is open to everyone.
type Coupon struct {
	ID              string
	Code            string
	Description     string
	DiscountType    DiscountType
	DiscountValue   decimal.Decimal
	MaximumDiscount decimal.Decimal
	MinimumPurchase decimal.Decimal
	UsageLimit      int
	UsageCount      int
	Active          bool
	StartsAt        *time.Time
	EndsAt          *time.Time
	AllowedUserIDs  []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Usable reports whether the coupon can be redeemed at the given moment:
// active, inside its validity window, and under its usage limit.
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

// EligibleFor reports whether the given user may redeem this coupon.
func (c *Coupon) EligibleFor(userID string) bool {
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// RemainingUses returns how many redemptions are left. The second return value
// is false for unlimited coupons.
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

// Repository provides persistence for coupons.
//
// IncrementUsage must be conditional at the store: it increments the usage
// counter only while it is still below the limit and returns
// ErrUsageLimitReached otherwise, closing the validate/apply race.
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
