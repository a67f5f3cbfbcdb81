package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
)

type cartItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

type cartResponse struct {
	Items      []cartItemResponse `json:"items"`
	TotalPrice float64            `json:"totalPrice"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	items := make([]cartItemResponse, len(c.Items))
	for i, it := range c.Items {
		items[i] = cartItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money(it.Price),
			Image:     it.Image,
			Quantity:  it.Quantity,
		}
	}
	return cartResponse{Items: items, TotalPrice: money(c.TotalPrice)}
}

// userCart loads the user's cart, creating an empty one on first access.
func (h *Handler) userCart(r *http.Request) (*cart.Cart, error) {
	userID := claimsFrom(r.Context()).UserID
	c, err := h.carts.FindByUser(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = &cart.Cart{UserID: userID}
	}
	return c, nil
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.userCart(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		h.respondError(w, r, &order.InvalidQuantityError{ProductID: req.ProductID})
		return
	}

	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.userCart(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	// The cart cannot hold more than the catalog has in stock; placement
	// re-checks against live stock anyway.
	if c.Quantity(p.ID)+req.Quantity > p.CountInStock {
		h.respondError(w, r, product.ErrInsufficientStock)
		return
	}

	c.Upsert(cart.Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		Quantity:  req.Quantity,
	})
	if err := h.carts.Save(r.Context(), c); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) setCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	productID := chi.URLParam(r, "productID")
	if req.Quantity <= 0 {
		h.respondError(w, r, &order.InvalidQuantityError{ProductID: productID})
		return
	}

	p, err := h.products.GetByID(r.Context(), productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Quantity > p.CountInStock {
		h.respondError(w, r, product.ErrInsufficientStock)
		return
	}

	c, err := h.userCart(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := c.SetQuantity(productID, req.Quantity); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.carts.Save(r.Context(), c); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.userCart(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := c.Remove(chi.URLParam(r, "productID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.carts.Save(r.Context(), c); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toCartResponse(c))
}
