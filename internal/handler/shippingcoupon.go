package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/shippingcoupon"
)

type shippingCouponResponse struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Description     string     `json:"description,omitempty"`
	DiscountType    string     `json:"discountType"`
	DiscountValue   float64    `json:"discountValue"`
	MaximumDiscount float64    `json:"maximumDiscount,omitempty"`
	UsageLimit      int        `json:"usageLimit,omitempty"`
	UsageCount      int        `json:"usageCount"`
	RemainingUses   *int       `json:"remainingUses,omitempty"`
	Active          bool       `json:"active"`
	StartsAt        *time.Time `json:"startsAt,omitempty"`
	EndsAt          *time.Time `json:"endsAt,omitempty"`
}

func toShippingCouponResponse(c *shippingcoupon.Coupon) shippingCouponResponse {
	resp := shippingCouponResponse{
		ID:              c.ID,
		Code:            c.Code,
		Description:     c.Description,
		DiscountType:    string(c.DiscountType),
		DiscountValue:   money(c.DiscountValue),
		MaximumDiscount: money(c.MaximumDiscount),
		UsageLimit:      c.UsageLimit,
		UsageCount:      c.UsageCount,
		Active:          c.Active,
		StartsAt:        c.StartsAt,
		EndsAt:          c.EndsAt,
	}
	if left, limited := c.RemainingUses(); limited {
		resp.RemainingUses = &left
	}
	return resp
}

type shippingCouponRequest struct {
	Code            string     `json:"code"`
	Description     string     `json:"description"`
	DiscountType    string     `json:"discountType"`
	DiscountValue   float64    `json:"discountValue"`
	MaximumDiscount float64    `json:"maximumDiscount"`
	UsageLimit      int        `json:"usageLimit"`
	Active          *bool      `json:"active"`
	StartsAt        *time.Time `json:"startsAt"`
	EndsAt          *time.Time `json:"endsAt"`
}

func (req *shippingCouponRequest) apply(c *shippingcoupon.Coupon) error {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return errBadRequest("coupon code is required")
	}
	dt := shippingcoupon.DiscountType(req.DiscountType)
	if dt != shippingcoupon.DiscountPercentage && dt != shippingcoupon.DiscountFixed {
		return errBadRequest("discountType must be percentage or fixed")
	}
	if req.DiscountValue <= 0 {
		return errBadRequest("discountValue must be positive")
	}

	c.Code = code
	c.Description = req.Description
	c.DiscountType = dt
	c.DiscountValue = decimal.NewFromFloat(req.DiscountValue)
	c.MaximumDiscount = decimal.NewFromFloat(req.MaximumDiscount)
	c.UsageLimit = req.UsageLimit
	c.StartsAt = req.StartsAt
	c.EndsAt = req.EndsAt
	if req.Active != nil {
		c.Active = *req.Active
	}
	return nil
}

func (h *Handler) validateShippingCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code          string  `json:"code"`
		ShippingPrice float64 `json:"shippingPrice"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.shipVal.Validate(r.Context(), strings.ToUpper(req.Code), decimal.NewFromFloat(req.ShippingPrice))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, struct {
		Valid    bool                   `json:"valid"`
		Discount float64                `json:"discount"`
		Coupon   shippingCouponResponse `json:"coupon"`
	}{
		Valid:    true,
		Discount: money(res.Discount),
		Coupon:   toShippingCouponResponse(res.Coupon),
	})
}

func (h *Handler) applyShippingCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.shipVal.Apply(r.Context(), strings.ToUpper(req.Code))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toShippingCouponResponse(c))
}

func (h *Handler) availableShippingCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.shipCoupons.ListAvailable(r.Context(), time.Now())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]shippingCouponResponse, len(list))
	for i := range list {
		resp[i] = toShippingCouponResponse(&list[i])
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *Handler) listShippingCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.shipCoupons.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]shippingCouponResponse, len(list))
	for i := range list {
		resp[i] = toShippingCouponResponse(&list[i])
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *Handler) getShippingCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.shipCoupons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toShippingCouponResponse(c))
}

func (h *Handler) createShippingCoupon(w http.ResponseWriter, r *http.Request) {
	var req shippingCouponRequest
	if !h.decode(w, r, &req) {
		return
	}

	c := shippingcoupon.Coupon{ID: uuid.New().String(), Active: true}
	if err := req.apply(&c); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.shipCoupons.Create(r.Context(), &c); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toShippingCouponResponse(&c))
}

func (h *Handler) updateShippingCoupon(w http.ResponseWriter, r *http.Request) {
	var req shippingCouponRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.shipCoupons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := req.apply(c); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.shipCoupons.Update(r.Context(), c); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toShippingCouponResponse(c))
}

func (h *Handler) deleteShippingCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.shipCoupons.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}
