package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-api/internal/auth"
	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/coupon"
	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/domain/shippingcoupon"
	"github.com/xenking/storefront-api/internal/payment"
)

// --- Mock implementations ---

type mockProductRepo struct {
	product.Repository

	mu   sync.Mutex
	byID map[string]*product.Product
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockProductRepo{byID: byID}
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) DecrementStock(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.CountInStock < qty {
		return product.ErrInsufficientStock
	}
	p.CountInStock -= qty
	return nil
}

type mockCartRepo struct {
	cart.Repository

	carts map[string]*cart.Cart
}

func newCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*cart.Cart)}
}

func (m *mockCartRepo) FindByUser(_ context.Context, userID string) (*cart.Cart, error) {
	return m.carts[userID], nil
}

func (m *mockCartRepo) Save(_ context.Context, c *cart.Cart) error {
	m.carts[c.UserID] = c
	return nil
}

func (m *mockCartRepo) Clear(_ context.Context, userID string) error {
	delete(m.carts, userID)
	return nil
}

type mockCouponRepo struct {
	coupon.Repository

	byCode map[string]*coupon.Coupon
}

func newCouponRepo(coupons ...coupon.Coupon) *mockCouponRepo {
	byCode := make(map[string]*coupon.Coupon, len(coupons))
	for i := range coupons {
		byCode[coupons[i].Code] = &coupons[i]
	}
	return &mockCouponRepo{byCode: byCode}
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCouponRepo) IncrementUsage(_ context.Context, id string) error {
	for _, c := range m.byCode {
		if c.ID == id {
			if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
				return coupon.ErrUsageLimitReached
			}
			c.UsageCount++
			return nil
		}
	}
	return coupon.ErrNotFound
}

func (m *mockCouponRepo) ListAvailable(_ context.Context, now time.Time) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	for _, c := range m.byCode {
		if c.Usable(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

type mockShipCouponRepo struct {
	shippingcoupon.Repository

	byCode map[string]*shippingcoupon.Coupon
}

func newShipCouponRepo(coupons ...shippingcoupon.Coupon) *mockShipCouponRepo {
	byCode := make(map[string]*shippingcoupon.Coupon, len(coupons))
	for i := range coupons {
		byCode[coupons[i].Code] = &coupons[i]
	}
	return &mockShipCouponRepo{byCode: byCode}
}

func (m *mockShipCouponRepo) FindByCode(_ context.Context, code string) (*shippingcoupon.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, shippingcoupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockShipCouponRepo) IncrementUsage(_ context.Context, id string) error {
	for _, c := range m.byCode {
		if c.ID == id {
			c.UsageCount++
			return nil
		}
	}
	return shippingcoupon.ErrNotFound
}

type mockOrderRepo struct {
	order.Repository

	byID map[string]*order.Order
}

func newOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byID: make(map[string]*order.Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, id string, paidAt time.Time, _ string) error {
	o, ok := m.byID[id]
	if !ok {
		return order.ErrNotFound
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	return nil
}

type mockHistoryRepo struct {
	order.HistoryRepository
}

func (mockHistoryRepo) Append(_ context.Context, _ *order.HistoryEntry) error { return nil }

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noopNotifier struct{}

func (noopNotifier) OrderConfirmation(_ context.Context, _ string, _ *order.Order) error {
	return nil
}

// --- Fixture ---

type fixture struct {
	router   chi.Router
	tokens   *auth.Tokens
	products *mockProductRepo
	coupons  *mockCouponRepo
	ship     *mockShipCouponRepo
	orders   *mockOrderRepo
	gateway  *payment.Gateway
}

func newFixture(t *testing.T, products ...product.Product) *fixture {
	t.Helper()

	f := &fixture{
		tokens:   auth.NewTokens([]byte("test-secret"), time.Hour),
		products: newProductRepo(products...),
		coupons:  newCouponRepo(),
		ship:     newShipCouponRepo(),
		orders:   newOrderRepo(),
		gateway: payment.NewGateway(payment.Config{
			BaseURL:    "https://gateway.example.com/pay",
			ReturnURL:  "https://shop.example.com/payments/return",
			MerchantID: "SHOP01",
			Secret:     "gw-secret",
		}),
	}

	couponVal := coupon.NewValidator(f.coupons)
	shipVal := shippingcoupon.NewValidator(f.ship)
	orders := order.NewService(
		f.products, newCartRepo(), f.orders, mockHistoryRepo{},
		couponVal, shipVal, passTx{}, noopNotifier{},
		decimal.RequireFromString("30000"),
	)

	h := NewHandler(Config{}, f.tokens, f.products, newCartRepo(),
		f.coupons, couponVal, f.ship, shipVal, orders, f.gateway)

	f.router = chi.NewRouter()
	h.Routes(f.router)
	return f
}

func (f *fixture) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) userToken(t *testing.T) string {
	t.Helper()
	tok, err := f.tokens.Issue("u1", "u1@example.com", false)
	require.NoError(t, err)
	return tok
}

func (f *fixture) adminToken(t *testing.T) string {
	t.Helper()
	tok, err := f.tokens.Issue("admin", "admin@example.com", true)
	require.NoError(t, err)
	return tok
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// --- Tests ---

func TestAuth(t *testing.T) {
	f := newFixture(t)

	t.Run("missing token returns 401", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/cart", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token returns 401", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/cart", "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-admin on admin route returns 403", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/coupons", f.userToken(t), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("public product listing needs no token", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/products", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestValidateCoupon(t *testing.T) {
	newCouponFixture := func(t *testing.T) *fixture {
		f := newFixture(t)
		f.coupons.byCode["SAVE10"] = &coupon.Coupon{
			ID: "c1", Code: "SAVE10", Active: true,
			DiscountType: coupon.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
			MaximumDiscount: decimal.NewFromInt(40000),
			MinimumPurchase: decimal.NewFromInt(100000),
			UsageLimit:      5,
		}
		return f
	}

	t.Run("valid coupon returns discount", func(t *testing.T) {
		f := newCouponFixture(t)
		rec := f.request(t, http.MethodPost, "/api/coupons/validate", f.userToken(t),
			map[string]any{"code": "save10", "cartTotal": 500000})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeBody[struct {
			Valid    bool    `json:"valid"`
			Discount float64 `json:"discount"`
		}](t, rec)
		assert.True(t, resp.Valid)
		assert.InDelta(t, 40000, resp.Discount, 0.01)
	})

	t.Run("unknown code returns 404", func(t *testing.T) {
		f := newCouponFixture(t)
		rec := f.request(t, http.MethodPost, "/api/coupons/validate", f.userToken(t),
			map[string]any{"code": "BOGUS", "cartTotal": 500000})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotEmpty(t, decodeBody[errorResponse](t, rec).Message)
	})

	t.Run("below minimum purchase returns 400", func(t *testing.T) {
		f := newCouponFixture(t)
		rec := f.request(t, http.MethodPost, "/api/coupons/validate", f.userToken(t),
			map[string]any{"code": "SAVE10", "cartTotal": 50000})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("allowlisted coupon rejects other users", func(t *testing.T) {
		f := newCouponFixture(t)
		f.coupons.byCode["SAVE10"].AllowedUserIDs = []string{"someone-else"}
		rec := f.request(t, http.MethodPost, "/api/coupons/validate", f.userToken(t),
			map[string]any{"code": "SAVE10", "cartTotal": 500000})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(t)
	f.coupons.byCode["ONCE"] = &coupon.Coupon{
		ID: "c1", Code: "ONCE", Active: true,
		DiscountType: coupon.DiscountFixed, DiscountValue: decimal.NewFromInt(20000),
		UsageLimit: 1,
	}

	rec := f.request(t, http.MethodPost, "/api/coupons/apply", f.userToken(t),
		map[string]any{"code": "ONCE"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.request(t, http.MethodPost, "/api/coupons/apply", f.userToken(t),
		map[string]any{"code": "ONCE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "second apply exceeds the limit")
}

func TestPlaceOrder(t *testing.T) {
	shirt := product.Product{ID: "p1", Name: "Shirt", Price: decimal.NewFromInt(250000), CountInStock: 10}

	t.Run("happy path computes authoritative totals", func(t *testing.T) {
		f := newFixture(t, shirt)
		f.coupons.byCode["SAVE10"] = &coupon.Coupon{
			ID: "c1", Code: "SAVE10", Active: true,
			DiscountType: coupon.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
			MaximumDiscount: decimal.NewFromInt(40000),
		}
		f.ship.byCode["SHIP50"] = &shippingcoupon.Coupon{
			ID: "s1", Code: "SHIP50", Active: true,
			DiscountType: shippingcoupon.DiscountPercentage, DiscountValue: decimal.NewFromInt(50),
		}

		rec := f.request(t, http.MethodPost, "/api/orders", f.userToken(t), map[string]any{
			"items":              []map[string]any{{"productId": "p1", "quantity": 2}},
			"paymentMethod":      "cod",
			"couponCode":         "SAVE10",
			"shippingCouponCode": "SHIP50",
			"shippingAddress":    map[string]any{"fullName": "A B", "address": "1 Street", "city": "Hanoi"},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decodeBody[orderResponse](t, rec)
		assert.InDelta(t, 500000, resp.ItemsPrice, 0.01)
		assert.InDelta(t, 40000, resp.Discount, 0.01)
		assert.InDelta(t, 15000, resp.ShippingDiscount, 0.01)
		assert.InDelta(t, 46000, resp.TaxPrice, 0.01)
		assert.InDelta(t, 521000, resp.TotalPrice, 0.01)
		assert.Equal(t, "pending", resp.Status)
	})

	t.Run("empty order returns 400", func(t *testing.T) {
		f := newFixture(t, shirt)
		rec := f.request(t, http.MethodPost, "/api/orders", f.userToken(t),
			map[string]any{"items": []map[string]any{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown product returns 404", func(t *testing.T) {
		f := newFixture(t, shirt)
		rec := f.request(t, http.MethodPost, "/api/orders", f.userToken(t),
			map[string]any{"items": []map[string]any{{"productId": "ghost", "quantity": 1}}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("insufficient stock returns 400", func(t *testing.T) {
		f := newFixture(t, shirt)
		rec := f.request(t, http.MethodPost, "/api/orders", f.userToken(t),
			map[string]any{"items": []map[string]any{{"productId": "p1", "quantity": 99}}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestQuoteOrder(t *testing.T) {
	shirt := product.Product{ID: "p1", Name: "Shirt", Price: decimal.NewFromInt(250000), CountInStock: 10}
	f := newFixture(t, shirt)

	rec := f.request(t, http.MethodPost, "/api/orders/quote", f.userToken(t), map[string]any{
		"items": []map[string]any{{"productId": "p1", "quantity": 2}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[quoteResponse](t, rec)
	assert.InDelta(t, 500000, resp.ItemsPrice, 0.01)
	assert.InDelta(t, 30000, resp.FinalShipping, 0.01)
	assert.InDelta(t, 50000, resp.TaxPrice, 0.01)
	assert.InDelta(t, 580000, resp.TotalPrice, 0.01)

	// Quote must not touch stock.
	p, err := f.products.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.CountInStock)
}

func TestGetOrder_Ownership(t *testing.T) {
	shirt := product.Product{ID: "p1", Name: "Shirt", Price: decimal.NewFromInt(250000), CountInStock: 10}
	f := newFixture(t, shirt)

	rec := f.request(t, http.MethodPost, "/api/orders", f.userToken(t), map[string]any{
		"items":         []map[string]any{{"productId": "p1", "quantity": 1}},
		"paymentMethod": "cod",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decodeBody[orderResponse](t, rec)

	t.Run("owner can read", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/orders/"+placed.ID, f.userToken(t), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("stranger gets 403", func(t *testing.T) {
		tok, err := f.tokens.Issue("u2", "", false)
		require.NoError(t, err)
		rec := f.request(t, http.MethodGet, "/api/orders/"+placed.ID, tok, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin can read", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/orders/"+placed.ID, f.adminToken(t), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestPaymentReturn(t *testing.T) {
	shirt := product.Product{ID: "p1", Name: "Shirt", Price: decimal.NewFromInt(250000), CountInStock: 10}
	f := newFixture(t, shirt)

	rec := f.request(t, http.MethodPost, "/api/orders", f.userToken(t), map[string]any{
		"items":         []map[string]any{{"productId": "p1", "quantity": 1}},
		"paymentMethod": "gateway",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decodeBody[orderResponse](t, rec)

	// Get a signed checkout URL, then replay its signed params as the
	// gateway return callback with a success response code.
	rec = f.request(t, http.MethodPost, "/api/payments/checkout-url", f.userToken(t),
		map[string]any{"orderId": placed.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	checkout := decodeBody[struct {
		CheckoutURL string `json:"checkoutUrl"`
	}](t, rec)
	assert.NotEmpty(t, checkout.CheckoutURL)

	t.Run("tampered callback rejected", func(t *testing.T) {
		rec := f.request(t, http.MethodGet,
			"/api/payments/return?vnp_ResponseCode=00&vnp_SecureHash=ABCD", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4444"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", clientIP(req))

	// Proxy chains append to the header; only the first hop is the client.
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1, 10.0.0.2")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
