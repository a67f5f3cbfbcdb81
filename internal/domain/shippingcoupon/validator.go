package shippingcoupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount computes the shipping discount for the coupon against the given
// shipping fee. It returns zero when the coupon is not usable at the given
// moment, percentage-of-fee (capped at MaximumDiscount) or the fixed value
// otherwise, rounded to whole currency units.
func Discount(c *Coupon, shippingFee decimal.Decimal, now time.Time) decimal.Decimal {
	if !c.Usable(now) {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = shippingFee.Mul(c.DiscountValue).Div(hundred)
	case DiscountFixed:
		amount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if c.MaximumDiscount.IsPositive() && amount.GreaterThan(c.MaximumDiscount) {
		amount = c.MaximumDiscount
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(0)
}

// Result holds a validated coupon and the discount it yields for the
// submitted shipping fee.
type Result struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Validator checks shipping coupon codes against the flat shipping fee.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate checks existence and usability of the code and computes the
// discount against the shipping fee. It does not consume a use.
func (v *Validator) Validate(ctx context.Context, code string, shippingFee decimal.Decimal) (*Result, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup shipping coupon")
	}

	now := v.now()
	if !c.Usable(now) {
		if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
			return nil, ErrUsageLimitReached
		}
		return nil, ErrNotUsable
	}

	return &Result{Coupon: c, Discount: Discount(c, shippingFee, now)}, nil
}

// Apply consumes one use of the coupon after re-checking usability. The
// increment is conditional at the store.
func (v *Validator) Apply(ctx context.Context, code string) (*Coupon, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup shipping coupon")
	}

	if !c.Usable(v.now()) {
		if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
			return nil, ErrUsageLimitReached
		}
		return nil, ErrNotUsable
	}

	if err := v.repo.IncrementUsage(ctx, c.ID); err != nil {
		return nil, err
	}
	c.UsageCount++

	return c, nil
}
