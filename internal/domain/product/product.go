package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned by DecrementStock when the remaining
	// stock cannot cover the requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID           string
	Name         string
	Description  string
	Price        decimal.Decimal
	Image        string
	Category     string
	CountInStock int
}

// Repository defines catalog operations.
//
// DecrementStock must be an atomic decrement-if-sufficient at the store: the
// row is updated only while count_in_stock covers qty, and ErrInsufficientStock
// is returned otherwise. Two racing orders for the last unit cannot both win.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	DecrementStock(ctx context.Context, id string, qty int) error
	RestoreStock(ctx context.Context, id string, qty int) error
}
