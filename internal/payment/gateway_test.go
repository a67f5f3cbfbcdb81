package payment

import (
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway() *Gateway {
	g := NewGateway(Config{
		BaseURL:    "https://gateway.example.com/pay",
		ReturnURL:  "https://shop.example.com/payments/return",
		MerchantID: "SHOP01",
		Secret:     "test-secret",
	})
	g.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return g
}

func TestGateway_CheckoutURL(t *testing.T) {
	g := testGateway()

	raw, err := g.CheckoutURL("order-1", decimal.RequireFromString("521000"), "203.0.113.7")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "52100000", q.Get("vnp_Amount"), "amount is sent in the minor unit")
	assert.Equal(t, "order-1", q.Get("vnp_TxnRef"))
	assert.Equal(t, "ORDER:order-1", q.Get("vnp_OrderInfo"))
	assert.NotEmpty(t, q.Get("vnp_SecureHash"))

	_, err = g.CheckoutURL("order-1", decimal.Zero, "203.0.113.7")
	assert.Error(t, err)
}

func TestGateway_VerifyReturn(t *testing.T) {
	g := testGateway()

	// Build a callback the way the gateway would: same params, same signing.
	callback := func(responseCode string) url.Values {
		params := url.Values{}
		params.Set("vnp_Amount", "52100000")
		params.Set("vnp_OrderInfo", "ORDER:order-1")
		params.Set("vnp_ResponseCode", responseCode)
		params.Set("vnp_TransactionNo", "14422574")
		params.Set("vnp_BankCode", "NCB")
		params.Set("vnp_SecureHash", g.sign(params))
		return params
	}

	t.Run("success", func(t *testing.T) {
		res, err := g.VerifyReturn(callback("00"))
		require.NoError(t, err)
		assert.Equal(t, "order-1", res.OrderID)
		assert.Equal(t, "14422574", res.TransactionID)
		assert.True(t, decimal.RequireFromString("521000").Equal(res.Amount))
	})

	t.Run("declined payment", func(t *testing.T) {
		res, err := g.VerifyReturn(callback("24"))
		require.ErrorIs(t, err, ErrPaymentFailed)
		require.NotNil(t, res)
		assert.Equal(t, "order-1", res.OrderID)
	})

	t.Run("tampered amount rejected", func(t *testing.T) {
		params := callback("00")
		params.Set("vnp_Amount", "100")
		_, err := g.VerifyReturn(params)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		params := callback("00")
		params.Del("vnp_SecureHash")
		_, err := g.VerifyReturn(params)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}
