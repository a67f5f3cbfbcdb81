package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/product"
)

type productResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	Image        string  `json:"image,omitempty"`
	Category     string  `json:"category,omitempty"`
	CountInStock int     `json:"countInStock"`
}

// toProductResponse converts a catalog product into its API shape. Relative
// image paths are prefixed with the configured imageBaseURL.
func (h *Handler) toProductResponse(p product.Product) productResponse {
	image := p.Image
	if image != "" && !strings.HasPrefix(image, "http") {
		image = h.imageBaseURL + image
	}
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        money(p.Price),
		Image:        image,
		Category:     p.Category,
		CountInStock: p.CountInStock,
	}
}

type productRequest struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	Image        string  `json:"image"`
	Category     string  `json:"category"`
	CountInStock int     `json:"countInStock"`
}

func (req *productRequest) apply(p *product.Product) error {
	if strings.TrimSpace(req.Name) == "" {
		return errBadRequest("product name is required")
	}
	if req.Price < 0 {
		return errBadRequest("price must not be negative")
	}
	if req.CountInStock < 0 {
		return errBadRequest("countInStock must not be negative")
	}

	p.Name = req.Name
	p.Description = req.Description
	p.Price = decimal.NewFromFloat(req.Price)
	p.Image = req.Image
	p.Category = req.Category
	p.CountInStock = req.CountInStock
	return nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]productResponse, len(list))
	for i, p := range list {
		resp[i] = h.toProductResponse(p)
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, h.toProductResponse(*p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}

	p := product.Product{ID: uuid.New().String()}
	if err := req.apply(&p); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.products.Create(r.Context(), &p); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, h.toProductResponse(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := req.apply(p); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.products.Update(r.Context(), p); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, h.toProductResponse(*p))
}
