// Package handler exposes the storefront API over HTTP. Handlers decode and
// validate transport concerns only and delegate business logic to the domain
// services; all authoritative arithmetic lives there.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/auth"
	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/coupon"
	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/domain/shippingcoupon"
	"github.com/xenking/storefront-api/internal/payment"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Handler wires the HTTP surface to the domain layer.
type Handler struct {
	tokens       *auth.Tokens
	products     product.Repository
	carts        cart.Repository
	coupons      coupon.Repository
	couponVal    *coupon.Validator
	shipCoupons  shippingcoupon.Repository
	shipVal      *shippingcoupon.Validator
	orders       *order.Service
	gateway      *payment.Gateway
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	tokens *auth.Tokens,
	products product.Repository,
	carts cart.Repository,
	coupons coupon.Repository,
	couponVal *coupon.Validator,
	shipCoupons shippingcoupon.Repository,
	shipVal *shippingcoupon.Validator,
	orders *order.Service,
	gateway *payment.Gateway,
) *Handler {
	return &Handler{
		tokens:       tokens,
		products:     products,
		carts:        carts,
		coupons:      coupons,
		couponVal:    couponVal,
		shipCoupons:  shipCoupons,
		shipVal:      shipVal,
		orders:       orders,
		gateway:      gateway,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes mounts the API surface under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/coupons", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.RequireUser)
				r.Post("/validate", h.validateCoupon)
				r.Post("/apply", h.applyCoupon)
				r.Get("/available", h.availableCoupons)
			})
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Get("/", h.listCoupons)
				r.Post("/", h.createCoupon)
				r.Get("/{id}", h.getCoupon)
				r.Put("/{id}", h.updateCoupon)
				r.Delete("/{id}", h.deleteCoupon)
			})
		})

		r.Route("/shipping-coupons", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.RequireUser)
				r.Post("/validate", h.validateShippingCoupon)
				r.Post("/apply", h.applyShippingCoupon)
				r.Get("/available", h.availableShippingCoupons)
			})
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Get("/", h.listShippingCoupons)
				r.Post("/", h.createShippingCoupon)
				r.Get("/{id}", h.getShippingCoupon)
				r.Put("/{id}", h.updateShippingCoupon)
				r.Delete("/{id}", h.deleteShippingCoupon)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Get("/{id}", h.getProduct)
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Post("/", h.createProduct)
				r.Put("/{id}", h.updateProduct)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(h.RequireUser)
			r.Get("/", h.getCart)
			r.Post("/", h.addCartItem)
			r.Put("/{productID}", h.setCartQuantity)
			r.Delete("/{productID}", h.removeCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(h.RequireUser)
			r.Post("/", h.placeOrder)
			r.Post("/quote", h.quoteOrder)
			r.Get("/", h.listOrders)
			r.Get("/mine", h.myOrders)
			r.Get("/history", h.orderHistory)
			r.Get("/{id}", h.getOrder)
			r.Put("/{id}/cancel", h.cancelOrder)
			r.Put("/{id}/status", h.updateOrderStatus)
			r.Put("/{id}/pay", h.payOrder)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(h.RequireUser).Post("/checkout-url", h.checkoutURL)
			r.Get("/return", h.paymentReturn)
		})
	})
}

type errorResponse struct {
	Message string `json:"message"`
}

// badRequestError marks request validation failures raised in this package.
type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func errBadRequest(msg string) error { return badRequestError(msg) }

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func (h *Handler) respondMessage(w http.ResponseWriter, status int, msg string) {
	h.respond(w, status, errorResponse{Message: msg})
}

// respondError maps domain errors to the API's status taxonomy. Unclassified
// errors are logged and reported as a plain 500 without leaking internals.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, shippingcoupon.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		h.respondMessage(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, order.ErrForbidden),
		errors.Is(err, coupon.ErrUserNotEligible):
		h.respondMessage(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, coupon.ErrNotUsable),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrCodeExists),
		errors.Is(err, shippingcoupon.ErrNotUsable),
		errors.Is(err, shippingcoupon.ErrUsageLimitReached),
		errors.Is(err, shippingcoupon.ErrCodeExists),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrAlreadyCancelled),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrNotPayable),
		errors.Is(err, product.ErrInsufficientStock),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, payment.ErrInvalidSignature):
		h.respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	var badReq badRequestError
	if errors.As(err, &badReq) {
		h.respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		belowMin *coupon.BelowMinimumError
		badQty   *order.InvalidQuantityError
		noProd   *order.ProductNotFoundError
		noStock  *order.InsufficientStockError
	)
	switch {
	case errors.As(err, &belowMin), errors.As(err, &badQty), errors.As(err, &noStock):
		h.respondMessage(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &noProd):
		h.respondMessage(w, http.StatusNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		h.respondMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// money renders a decimal as a JSON number. Amounts are whole currency units,
// so the float64 conversion is exact.
func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
