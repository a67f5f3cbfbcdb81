package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	Repository

	coupon        *Coupon
	err           error
	incrementErr  error
	incrementedID string
}

func (m *mockRepo) FindByCode(_ context.Context, _ string) (*Coupon, error) {
	return m.coupon, m.err
}

func (m *mockRepo) IncrementUsage(_ context.Context, id string) error {
	m.incrementedID = id
	return m.incrementErr
}

func TestValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-24 * time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name         string
		repo         *mockRepo
		cartTotal    decimal.Decimal
		userID       string
		wantDiscount decimal.Decimal
		wantErr      error
	}{
		{
			name: "valid percentage coupon",
			repo: &mockRepo{coupon: &Coupon{
				ID: "c1", Code: "SAVE10", Active: true,
				DiscountType: DiscountPercentage, DiscountValue: d("10"),
			}},
			cartTotal:    d("500000"),
			wantDiscount: d("50000"),
		},
		{
			name:      "unknown code",
			repo:      &mockRepo{err: ErrNotFound},
			cartTotal: d("100000"),
			wantErr:   ErrNotFound,
		},
		{
			name: "inactive coupon",
			repo: &mockRepo{coupon: &Coupon{
				ID: "c1", Code: "OFF", Active: false,
				DiscountType: DiscountPercentage, DiscountValue: d("10"),
			}},
			cartTotal: d("100000"),
			wantErr:   ErrNotUsable,
		},
		{
			name: "not yet started",
			repo: &mockRepo{coupon: &Coupon{
				ID: "c1", Code: "SOON", Active: true, StartsAt: &future,
				DiscountType: DiscountPercentage, DiscountValue: d("10"),
			}},
			cartTotal: d("100000"),
			wantErr:   ErrNotUsable,
		},
		{
			name: "already ended",
			repo: &mockRepo{coupon: &Coupon{
				ID: "c1", Code: "OLD", Active: true, EndsAt: &past,
				DiscountType: DiscountPercentage, DiscountValue: d("10"),
			}},
			cartTotal: d("100000"),
			wantErr:   ErrNotUsable,
		},
		{
			name: "inside validity window",
			repo: &mockRepo{coupon: &Coupon{
				ID: "c1", Code: "NOW", Active: true, StartsAt: &past, EndsAt: &future,
				DiscountType: DiscountFixed, DiscountValue: d("5000"),
			}},
			cartTotal:    d("100000"),
			wantDiscount: d("5000"),
		},
		{
			name: "usage limit exhausted",
			repo: &mockRepo{coupon: &Coupon{
				ID: "c1", Code: "GONE", Active: true, UsageLimit: 100, UsageCount: 100,
				DiscountType: DiscountPercentage, DiscountValue: d("10"),
			}},
			cartTotal: d("100000"),
			wantErr:   ErrUsageLimitReached,
		},
		{
			name: "usage under limit",
			repo: &mockRepo{coupon: &Coupon{
				ID: "c1", Code: "ROOM", Active: true, UsageLimit: 100, UsageCount: 99,
				DiscountType: DiscountPercentage, DiscountValue: d("10"),
			}},
			cartTotal:    d("100000"),
			wantDiscount: d("10000"),
		},
		{
			name: "below minimum purchase",
			repo: &mockRepo{coupon: &Coupon{
				ID: "c1", Code: "MIN200K", Active: true, MinimumPurchase: d("200000"),
				DiscountType: DiscountPercentage, DiscountValue: d("10"),
			}},
			cartTotal: d("150000"),
			wantErr:   &BelowMinimumError{},
		},
		{
			name: "restricted coupon rejects outsider",
			repo: &mockRepo{coupon: &Coupon{
				ID: "c1", Code: "VIP", Active: true, AllowedUserIDs: []string{"u1", "u2"},
				DiscountType: DiscountPercentage, DiscountValue: d("10"),
			}},
			cartTotal: d("100000"),
			userID:    "u9",
			wantErr:   ErrUserNotEligible,
		},
		{
			name: "restricted coupon allows listed user",
			repo: &mockRepo{coupon: &Coupon{
				ID: "c1", Code: "VIP", Active: true, AllowedUserIDs: []string{"u1", "u2"},
				DiscountType: DiscountPercentage, DiscountValue: d("10"),
			}},
			cartTotal:    d("100000"),
			userID:       "u2",
			wantDiscount: d("10000"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), "X", tt.cartTotal, tt.userID)

			if tt.wantErr != nil {
				require.Error(t, err)
				if _, ok := tt.wantErr.(*BelowMinimumError); ok {
					var minErr *BelowMinimumError
					require.ErrorAs(t, err, &minErr)
				} else {
					require.ErrorIs(t, err, tt.wantErr)
				}
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.wantDiscount.Equal(got.Discount),
				"expected discount %s, got %s", tt.wantDiscount, got.Discount)
		})
	}
}

func TestValidator_Apply(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("increments usage for a usable coupon", func(t *testing.T) {
		repo := &mockRepo{coupon: &Coupon{
			ID: "c1", Code: "SAVE10", Active: true, UsageLimit: 10, UsageCount: 3,
			DiscountType: DiscountPercentage, DiscountValue: d("10"),
		}}
		v := NewValidator(repo)
		v.now = func() time.Time { return fixedNow }

		got, err := v.Apply(context.Background(), "SAVE10")
		require.NoError(t, err)
		assert.Equal(t, "c1", repo.incrementedID)
		assert.Equal(t, 4, got.UsageCount)
	})

	t.Run("exhausted coupon is rejected before the store is touched", func(t *testing.T) {
		repo := &mockRepo{coupon: &Coupon{
			ID: "c1", Code: "GONE", Active: true, UsageLimit: 5, UsageCount: 5,
			DiscountType: DiscountPercentage, DiscountValue: d("10"),
		}}
		v := NewValidator(repo)
		v.now = func() time.Time { return fixedNow }

		_, err := v.Apply(context.Background(), "GONE")
		require.ErrorIs(t, err, ErrUsageLimitReached)
		assert.Empty(t, repo.incrementedID)
	})

	t.Run("conditional increment losing the race surfaces the limit error", func(t *testing.T) {
		repo := &mockRepo{
			coupon: &Coupon{
				ID: "c1", Code: "LAST", Active: true, UsageLimit: 5, UsageCount: 4,
				DiscountType: DiscountPercentage, DiscountValue: d("10"),
			},
			incrementErr: ErrUsageLimitReached,
		}
		v := NewValidator(repo)
		v.now = func() time.Time { return fixedNow }

		_, err := v.Apply(context.Background(), "LAST")
		require.ErrorIs(t, err, ErrUsageLimitReached)
	})
}
