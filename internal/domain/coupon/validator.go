package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Result holds the outcome of a successful validation: the coupon itself and
// the discount it yields for the submitted cart total.
type Result struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Validator checks coupon codes against a cart total and the requesting user.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate runs the full eligibility check for a coupon code: existence,
// active/window/limit usability, minimum purchase, and the user allowlist.
// It does not consume a use; call Apply for that.
func (v *Validator) Validate(ctx context.Context, code string, cartTotal decimal.Decimal, userID string) (*Result, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()
	if !c.Usable(now) {
		if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
			return nil, ErrUsageLimitReached
		}
		return nil, ErrNotUsable
	}
	if cartTotal.LessThan(c.MinimumPurchase) {
		return nil, &BelowMinimumError{Minimum: c.MinimumPurchase}
	}
	if !c.EligibleFor(userID) {
		return nil, ErrUserNotEligible
	}

	return &Result{Coupon: c, Discount: Discount(c, cartTotal)}, nil
}

// Apply consumes one use of the coupon. Usability is re-checked here because
// the validate-time check can go stale under concurrent redemptions; the
// usage counter itself is incremented conditionally at the store, so the
// limit holds even when two Apply calls race.
func (v *Validator) Apply(ctx context.Context, code string) (*Coupon, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
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
