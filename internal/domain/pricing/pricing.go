// Package pricing holds the single authoritative order total computation.
//
// Both the order placement path and the quote preview endpoint go through
// Calculate, so the formula cannot drift between the stored total and what a
// client is shown before submitting.
package pricing

import "github.com/shopspring/decimal"

// TaxRate is the fixed VAT-style rate applied to the discounted item subtotal.
var TaxRate = decimal.RequireFromString("0.10")

// Quote is the full price breakdown for an order.
type Quote struct {
	ItemsTotal       decimal.Decimal
	Discount         decimal.Decimal
	ShippingFee      decimal.Decimal
	ShippingDiscount decimal.Decimal
	FinalShipping    decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
}

// Calculate derives the order total from its components:
//
//	tax           = round((itemsTotal - discount) * TaxRate)
//	finalShipping = max(0, shippingFee - shippingDiscount)
//	total         = max(0, itemsTotal - discount + finalShipping + tax)
//
// Shipping after discount never goes negative. The total is floored at zero:
// a fixed-amount coupon is never capped against the subtotal it discounts, so
// the raw sum can dip below zero when the coupon exceeds the cart value.
func Calculate(itemsTotal, discount, shippingFee, shippingDiscount decimal.Decimal) Quote {
	finalShipping := shippingFee.Sub(shippingDiscount)
	if finalShipping.IsNegative() {
		finalShipping = decimal.Zero
	}

	tax := itemsTotal.Sub(discount).Mul(TaxRate).Round(0)
	if tax.IsNegative() {
		tax = decimal.Zero
	}

	total := itemsTotal.Sub(discount).Add(finalShipping).Add(tax)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Quote{
		ItemsTotal:       itemsTotal,
		Discount:         discount,
		ShippingFee:      shippingFee,
		ShippingDiscount: shippingDiscount,
		FinalShipping:    finalShipping,
		Tax:              tax,
		Total:            total,
	}
}
