package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrItemNotFound is returned when a cart mutation references a product that
// is not in the cart.
var ErrItemNotFound = errors.New("item not found in cart")

// Item is a single product line in a cart, with the name/price/image
// snapshotted at the time it was added.
type Item struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Image     string
	Quantity  int
}

// Cart holds a user's pending items. There is exactly one cart per user and
// TotalPrice is re-derived on every mutation.
type Cart struct {
	ID         string
	UserID     string
	Items      []Item
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Recalculate re-derives TotalPrice from the current items.
func (c *Cart) Recalculate() {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	c.TotalPrice = sum
}

// Upsert adds the item or, when the product is already present, raises its
// quantity by item.Quantity. Returns the resulting quantity for the product.
func (c *Cart) Upsert(item Item) int {
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			c.Recalculate()
			return c.Items[i].Quantity
		}
	}
	c.Items = append(c.Items, item)
	c.Recalculate()
	return item.Quantity
}

// SetQuantity replaces the quantity for the given product.
func (c *Cart) SetQuantity(productID string, qty int) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = qty
			c.Recalculate()
			return nil
		}
	}
	return ErrItemNotFound
}

// Remove deletes the given product line from the cart.
func (c *Cart) Remove(productID string) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.Recalculate()
			return nil
		}
	}
	return ErrItemNotFound
}

// Quantity returns the current quantity of the given product, or zero.
func (c *Cart) Quantity(productID string) int {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

// Repository persists carts keyed by owning user.
type Repository interface {
	// FindByUser returns the user's cart, or nil when the user has none yet.
	FindByUser(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Clear(ctx context.Context, userID string) error
}
