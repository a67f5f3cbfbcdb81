package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCart_Upsert(t *testing.T) {
	c := &Cart{UserID: "u1"}

	qty := c.Upsert(Item{ProductID: "p1", Name: "Tee", Price: d("150000"), Quantity: 2})
	assert.Equal(t, 2, qty)
	assert.True(t, d("300000").Equal(c.TotalPrice))

	qty = c.Upsert(Item{ProductID: "p1", Price: d("150000"), Quantity: 1})
	assert.Equal(t, 3, qty)
	assert.Len(t, c.Items, 1)
	assert.True(t, d("450000").Equal(c.TotalPrice))

	c.Upsert(Item{ProductID: "p2", Name: "Cap", Price: d("90000"), Quantity: 1})
	assert.Len(t, c.Items, 2)
	assert.True(t, d("540000").Equal(c.TotalPrice))
}

func TestCart_SetQuantity(t *testing.T) {
	c := &Cart{UserID: "u1"}
	c.Upsert(Item{ProductID: "p1", Price: d("100000"), Quantity: 2})

	require.NoError(t, c.SetQuantity("p1", 5))
	assert.True(t, d("500000").Equal(c.TotalPrice))

	assert.ErrorIs(t, c.SetQuantity("p9", 1), ErrItemNotFound)
}

func TestCart_Remove(t *testing.T) {
	c := &Cart{UserID: "u1"}
	c.Upsert(Item{ProductID: "p1", Price: d("100000"), Quantity: 1})
	c.Upsert(Item{ProductID: "p2", Price: d("50000"), Quantity: 2})

	require.NoError(t, c.Remove("p1"))
	assert.Len(t, c.Items, 1)
	assert.True(t, d("100000").Equal(c.TotalPrice))

	assert.ErrorIs(t, c.Remove("p1"), ErrItemNotFound)
}
