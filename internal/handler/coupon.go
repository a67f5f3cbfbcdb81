package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/coupon"
)

type couponResponse struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Description     string     `json:"description,omitempty"`
	DiscountType    string     `json:"discountType"`
	DiscountValue   float64    `json:"discountValue"`
	MaximumDiscount float64    `json:"maximumDiscount,omitempty"`
	MinimumPurchase float64    `json:"minimumPurchase,omitempty"`
	UsageLimit      int        `json:"usageLimit,omitempty"`
	UsageCount      int        `json:"usageCount"`
	RemainingUses   *int       `json:"remainingUses,omitempty"`
	Active          bool       `json:"active"`
	StartsAt        *time.Time `json:"startsAt,omitempty"`
	EndsAt          *time.Time `json:"endsAt,omitempty"`
	AllowedUserIDs  []string   `json:"allowedUserIds,omitempty"`
}

func toCouponResponse(c *coupon.Coupon) couponResponse {
	resp := couponResponse{
		ID:              c.ID,
		Code:            c.Code,
		Description:     c.Description,
		DiscountType:    string(c.DiscountType),
		DiscountValue:   money(c.DiscountValue),
		MaximumDiscount: money(c.MaximumDiscount),
		MinimumPurchase: money(c.MinimumPurchase),
		UsageLimit:      c.UsageLimit,
		UsageCount:      c.UsageCount,
		Active:          c.Active,
		StartsAt:        c.StartsAt,
		EndsAt:          c.EndsAt,
		AllowedUserIDs:  c.AllowedUserIDs,
	}
	if left, limited := c.RemainingUses(); limited {
		resp.RemainingUses = &left
	}
	return resp
}

type couponRequest struct {
	Code            string     `json:"code"`
	Description     string     `json:"description"`
	DiscountType    string     `json:"discountType"`
	DiscountValue   float64    `json:"discountValue"`
	MaximumDiscount float64    `json:"maximumDiscount"`
	MinimumPurchase float64    `json:"minimumPurchase"`
	UsageLimit      int        `json:"usageLimit"`
	Active          *bool      `json:"active"`
	StartsAt        *time.Time `json:"startsAt"`
	EndsAt          *time.Time `json:"endsAt"`
	AllowedUserIDs  []string   `json:"allowedUserIds"`
}

func (req *couponRequest) apply(c *coupon.Coupon) error {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return errBadRequest("coupon code is required")
	}
	dt := coupon.DiscountType(req.DiscountType)
	if dt != coupon.DiscountPercentage && dt != coupon.DiscountFixed {
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
	c.MinimumPurchase = decimal.NewFromFloat(req.MinimumPurchase)
	c.UsageLimit = req.UsageLimit
	c.StartsAt = req.StartsAt
	c.EndsAt = req.EndsAt
	c.AllowedUserIDs = req.AllowedUserIDs
	if req.Active != nil {
		c.Active = *req.Active
	}
	return nil
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string  `json:"code"`
		CartTotal float64 `json:"cartTotal"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	res, err := h.couponVal.Validate(r.Context(), strings.ToUpper(req.Code), decimal.NewFromFloat(req.CartTotal), claims.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, struct {
		Valid    bool           `json:"valid"`
		Discount float64        `json:"discount"`
		Coupon   couponResponse `json:"coupon"`
	}{
		Valid:    true,
		Discount: money(res.Discount),
		Coupon:   toCouponResponse(res.Coupon),
	})
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.couponVal.Apply(r.Context(), strings.ToUpper(req.Code))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toCouponResponse(c))
}

func (h *Handler) availableCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.coupons.ListAvailable(r.Context(), time.Now())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]couponResponse, len(list))
	for i := range list {
		resp[i] = toCouponResponse(&list[i])
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.coupons.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]couponResponse, len(list))
	for i := range list {
		resp[i] = toCouponResponse(&list[i])
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toCouponResponse(c))
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !h.decode(w, r, &req) {
		return
	}

	c := coupon.Coupon{ID: uuid.New().String(), Active: true}
	if err := req.apply(&c); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.coupons.Create(r.Context(), &c); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toCouponResponse(&c))
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.coupons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := req.apply(c); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.coupons.Update(r.Context(), c); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toCouponResponse(c))
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}
