package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestDiscount(t *testing.T) {
	tests := []struct {
		name     string
		coupon   *Coupon
		subtotal decimal.Decimal
		want     decimal.Decimal
	}{
		{
			name: "percentage 10% off 500000",
			coupon: &Coupon{
				Code:          "SAVE10",
				DiscountType:  DiscountPercentage,
				DiscountValue: d("10"),
			},
			subtotal: d("500000"),
			want:     d("50000"),
		},
		{
			name: "percentage capped at maximum discount",
			coupon: &Coupon{
				Code:            "SAVE10CAP",
				DiscountType:    DiscountPercentage,
				DiscountValue:   d("10"),
				MaximumDiscount: d("40000"),
			},
			subtotal: d("500000"),
			want:     d("40000"),
		},
		{
			name: "percentage under the cap is not clipped",
			coupon: &Coupon{
				Code:            "SAVE10CAP",
				DiscountType:    DiscountPercentage,
				DiscountValue:   d("10"),
				MaximumDiscount: d("40000"),
			},
			subtotal: d("300000"),
			want:     d("30000"),
		},
		{
			name: "percentage 100% equals subtotal",
			coupon: &Coupon{
				Code:          "FREE",
				DiscountType:  DiscountPercentage,
				DiscountValue: d("100"),
			},
			subtotal: d("75000"),
			want:     d("75000"),
		},
		{
			name: "fixed amount taken verbatim",
			coupon: &Coupon{
				Code:          "FLAT20K",
				DiscountType:  DiscountFixed,
				DiscountValue: d("20000"),
			},
			subtotal: d("500000"),
			want:     d("20000"),
		},
		{
			name: "fixed amount may exceed the subtotal",
			coupon: &Coupon{
				Code:          "FLAT100K",
				DiscountType:  DiscountFixed,
				DiscountValue: d("100000"),
			},
			subtotal: d("50000"),
			want:     d("100000"),
		},
		{
			name: "maximum discount does not apply to fixed",
			coupon: &Coupon{
				Code:            "FLAT50K",
				DiscountType:    DiscountFixed,
				DiscountValue:   d("50000"),
				MaximumDiscount: d("10000"),
			},
			subtotal: d("200000"),
			want:     d("50000"),
		},
		{
			name: "fractional percentage rounds to whole units",
			coupon: &Coupon{
				Code:          "ODD",
				DiscountType:  DiscountPercentage,
				DiscountValue: d("15"),
			},
			subtotal: d("99999"),
			want:     d("15000"),
		},
		{
			name: "unknown discount type yields zero",
			coupon: &Coupon{
				Code:          "WAT",
				DiscountType:  DiscountType("bogus"),
				DiscountValue: d("10"),
			},
			subtotal: d("100000"),
			want:     decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Discount(tt.coupon, tt.subtotal)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}
