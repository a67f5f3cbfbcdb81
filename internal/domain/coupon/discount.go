package coupon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Discount computes the discount amount for the coupon against the given
// subtotal. Percentage discounts are capped at MaximumDiscount when set.
// Fixed discounts are taken verbatim and may exceed the subtotal; the order
// total is floored at zero downstream instead of capping here.
//
// Amounts are whole currency units, so the result is rounded to 0 places.
func Discount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal

	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaximumDiscount.IsPositive() && amount.GreaterThan(c.MaximumDiscount) {
			amount = c.MaximumDiscount
		}
	case DiscountFixed:
		amount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(0)
}
