package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyOrder is returned when an order is placed with no items.
	ErrEmptyOrder = errors.New("order has no items")
	// ErrForbidden is returned when a user acts on an order they do not own.
	ErrForbidden = errors.New("not allowed to access this order")
	// ErrNotCancellable is returned when cancelling a paid or delivered order.
	ErrNotCancellable = errors.New("order already paid or delivered")
	// ErrAlreadyCancelled guards against restoring stock twice.
	ErrAlreadyCancelled = errors.New("order already cancelled")
	// ErrInvalidStatus is returned for a status outside the lifecycle set or a
	// transition out of a terminal state.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrNotPayable is returned when paying a cancelled or already-paid order.
	ErrNotPayable = errors.New("order cancelled or already paid")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates the requested quantity exceeds what is left
// in stock for a product.
type InsufficientStockError struct {
	ProductID string
	Name      string
	InStock   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %s has only %d left in stock", e.Name, e.InStock)
}

// Address is the shipping destination captured with the order.
type Address struct {
	FullName    string
	PhoneNumber string
	Address     string
	City        string
	District    string
	PostalCode  string
	Notes       string
}

// Item is a single order line with the product name/price/image snapshotted
// at placement time. The price always comes from the server-side product
// record, never from the client.
type Item struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Image     string
	Quantity  int
}

// Order is a placed customer order. TotalPrice is the authoritative
// server-computed value; line items are immutable after creation.
type Order struct {
	ID                 string
	UserID             string
	Items              []Item
	ShippingAddress    Address
	PaymentMethod      string
	ItemsPrice         decimal.Decimal
	TaxPrice           decimal.Decimal
	ShippingPrice      decimal.Decimal
	ShippingDiscount   decimal.Decimal
	Discount           decimal.Decimal
	CouponCode         string
	ShippingCouponCode string
	TotalPrice         decimal.Decimal
	Status             Status
	IsPaid             bool
	PaidAt             *time.Time
	IsDelivered        bool
	DeliveredAt        *time.Time
	CreatedAt          time.Time
}

// HistoryEntry records one lifecycle event for a user's order.
type HistoryEntry struct {
	ID        string
	UserID    string
	OrderID   string
	Status    Status
	CreatedAt time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, deliveredAt *time.Time) error
	MarkPaid(ctx context.Context, id string, paidAt time.Time, paymentRef string) error
}

// HistoryRepository persists order lifecycle history.
type HistoryRepository interface {
	Append(ctx context.Context, e *HistoryEntry) error
	ListByUser(ctx context.Context, userID string) ([]HistoryEntry, error)
}

// Transactor runs fn within a single storage transaction. Repository calls
// made with the ctx passed to fn join that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier delivers the best-effort order confirmation. Failures are logged
// by the caller and never fail the order.
type Notifier interface {
	OrderConfirmation(ctx context.Context, email string, o *Order) error
}
