package handler

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/pricing"
	"github.com/xenking/storefront-api/internal/payment"
)

type addressPayload struct {
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
	City        string `json:"city"`
	District    string `json:"district,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

type orderResponse struct {
	ID                 string              `json:"id"`
	UserID             string              `json:"userId"`
	Items              []orderItemResponse `json:"items"`
	ShippingAddress    addressPayload      `json:"shippingAddress"`
	PaymentMethod      string              `json:"paymentMethod"`
	ItemsPrice         float64             `json:"itemsPrice"`
	Discount           float64             `json:"discount"`
	CouponCode         string              `json:"couponCode,omitempty"`
	ShippingPrice      float64             `json:"shippingPrice"`
	ShippingDiscount   float64             `json:"shippingDiscount"`
	ShippingCouponCode string              `json:"shippingCouponCode,omitempty"`
	TaxPrice           float64             `json:"taxPrice"`
	TotalPrice         float64             `json:"totalPrice"`
	Status             string              `json:"status"`
	IsPaid             bool                `json:"isPaid"`
	PaidAt             *time.Time          `json:"paidAt,omitempty"`
	IsDelivered        bool                `json:"isDelivered"`
	DeliveredAt        *time.Time          `json:"deliveredAt,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money(it.Price),
			Image:     it.Image,
			Quantity:  it.Quantity,
		}
	}
	return orderResponse{
		ID:     o.ID,
		UserID: o.UserID,
		Items:  items,
		ShippingAddress: addressPayload{
			FullName:    o.ShippingAddress.FullName,
			PhoneNumber: o.ShippingAddress.PhoneNumber,
			Address:     o.ShippingAddress.Address,
			City:        o.ShippingAddress.City,
			District:    o.ShippingAddress.District,
			PostalCode:  o.ShippingAddress.PostalCode,
			Notes:       o.ShippingAddress.Notes,
		},
		PaymentMethod:      o.PaymentMethod,
		ItemsPrice:         money(o.ItemsPrice),
		Discount:           money(o.Discount),
		CouponCode:         o.CouponCode,
		ShippingPrice:      money(o.ShippingPrice),
		ShippingDiscount:   money(o.ShippingDiscount),
		ShippingCouponCode: o.ShippingCouponCode,
		TaxPrice:           money(o.TaxPrice),
		TotalPrice:         money(o.TotalPrice),
		Status:             string(o.Status),
		IsPaid:             o.IsPaid,
		PaidAt:             o.PaidAt,
		IsDelivered:        o.IsDelivered,
		DeliveredAt:        o.DeliveredAt,
		CreatedAt:          o.CreatedAt,
	}
}

type quoteResponse struct {
	ItemsPrice       float64 `json:"itemsPrice"`
	Discount         float64 `json:"discount"`
	ShippingPrice    float64 `json:"shippingPrice"`
	ShippingDiscount float64 `json:"shippingDiscount"`
	FinalShipping    float64 `json:"finalShipping"`
	TaxPrice         float64 `json:"taxPrice"`
	TotalPrice       float64 `json:"totalPrice"`
}

func toQuoteResponse(q pricing.Quote) quoteResponse {
	return quoteResponse{
		ItemsPrice:       money(q.ItemsTotal),
		Discount:         money(q.Discount),
		ShippingPrice:    money(q.ShippingFee),
		ShippingDiscount: money(q.ShippingDiscount),
		FinalShipping:    money(q.FinalShipping),
		TaxPrice:         money(q.Tax),
		TotalPrice:       money(q.Total),
	}
}

type placeOrderRequest struct {
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	ShippingAddress    addressPayload `json:"shippingAddress"`
	PaymentMethod      string         `json:"paymentMethod"`
	CouponCode         string         `json:"couponCode"`
	ShippingCouponCode string         `json:"shippingCouponCode"`
}

func (req *placeOrderRequest) toDomain() order.PlaceRequest {
	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return order.PlaceRequest{
		Items: items,
		ShippingAddress: order.Address{
			FullName:    req.ShippingAddress.FullName,
			PhoneNumber: req.ShippingAddress.PhoneNumber,
			Address:     req.ShippingAddress.Address,
			City:        req.ShippingAddress.City,
			District:    req.ShippingAddress.District,
			PostalCode:  req.ShippingAddress.PostalCode,
			Notes:       req.ShippingAddress.Notes,
		},
		PaymentMethod:      req.PaymentMethod,
		CouponCode:         req.CouponCode,
		ShippingCouponCode: req.ShippingCouponCode,
	}
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	o, err := h.orders.Place(r.Context(), claims.UserID, claims.Email, req.toDomain())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) quoteOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	q, err := h.orders.Preview(r.Context(), claims.UserID, req.toDomain())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toQuoteResponse(q))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	if !claimsFrom(r.Context()).Admin {
		h.respondMessage(w, http.StatusForbidden, "admin access required")
		return
	}
	list, err := h.orders.ListAll(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondOrderList(w, list)
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListMine(r.Context(), claimsFrom(r.Context()).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondOrderList(w, list)
}

func (h *Handler) respondOrderList(w http.ResponseWriter, list []order.Order) {
	resp := make([]orderResponse, len(list))
	for i := range list {
		resp[i] = toOrderResponse(&list[i])
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.orders.History(r.Context(), claimsFrom(r.Context()).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	type entryResponse struct {
		OrderID   string    `json:"orderId"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"createdAt"`
	}
	resp := make([]entryResponse, len(entries))
	for i, e := range entries {
		resp[i] = entryResponse{OrderID: e.OrderID, Status: string(e.Status), CreatedAt: e.CreatedAt}
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), claims.UserID, claims.Admin)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), claims.UserID, claims.Admin); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: string(order.StatusCancelled)})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if !claimsFrom(r.Context()).Admin {
		h.respondMessage(w, http.StatusForbidden, "admin access required")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentRef string `json:"paymentRef"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	o, err := h.orders.MarkPaid(r.Context(), chi.URLParam(r, "id"), claims.UserID, claims.Admin, req.PaymentRef)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) checkoutURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"orderId"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	o, err := h.orders.Get(r.Context(), req.OrderID, claims.UserID, claims.Admin)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if o.IsPaid {
		h.respondMessage(w, http.StatusBadRequest, "order already paid")
		return
	}

	raw, err := h.gateway.CheckoutURL(o.ID, o.TotalPrice, clientIP(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, struct {
		CheckoutURL string `json:"checkoutUrl"`
	}{CheckoutURL: raw})
}

// paymentReturn handles the gateway's browser redirect back to us. The
// signature makes the callback trustworthy, so the order is marked paid
// without a bearer token.
func (h *Handler) paymentReturn(w http.ResponseWriter, r *http.Request) {
	res, err := h.gateway.VerifyReturn(r.URL.Query())
	if err != nil {
		if errors.Is(err, payment.ErrPaymentFailed) {
			h.respond(w, http.StatusOK, struct {
				Status  string `json:"status"`
				OrderID string `json:"orderId"`
			}{Status: "failed", OrderID: res.OrderID})
			return
		}
		h.respondError(w, r, err)
		return
	}

	if _, err := h.orders.MarkPaid(r.Context(), res.OrderID, "", true, res.TransactionID); err != nil {
		zctx.From(r.Context()).Error("Mark paid after gateway return",
			zap.String("order_id", res.OrderID), zap.Error(err))
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, struct {
		Status  string `json:"status"`
		OrderID string `json:"orderId"`
	}{Status: "completed", OrderID: res.OrderID})
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For holds a comma-separated chain behind proxies; the
	// first entry is the client.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
