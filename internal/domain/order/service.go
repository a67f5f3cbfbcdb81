package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/coupon"
	"github.com/xenking/storefront-api/internal/domain/pricing"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/domain/shippingcoupon"
)

// ItemRequest is one requested order line. Only the product reference and
// quantity are trusted; everything else is snapshotted server-side.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// PlaceRequest is the input for placing an order.
type PlaceRequest struct {
	Items              []ItemRequest
	ShippingAddress    Address
	PaymentMethod      string
	CouponCode         string
	ShippingCouponCode string
}

// Service orchestrates order placement and lifecycle transitions.
type Service struct {
	products    product.Repository
	carts       cart.Repository
	orders      Repository
	history     HistoryRepository
	coupons     *coupon.Validator
	shipCoupons *shippingcoupon.Validator
	tx          Transactor
	notifier    Notifier
	shippingFee decimal.Decimal
	now         func() time.Time
}

// NewService creates an order Service with the required dependencies.
// shippingFee is the flat per-order shipping fee.
func NewService(
	products product.Repository,
	carts cart.Repository,
	orders Repository,
	history HistoryRepository,
	coupons *coupon.Validator,
	shipCoupons *shippingcoupon.Validator,
	tx Transactor,
	notifier Notifier,
	shippingFee decimal.Decimal,
) *Service {
	return &Service{
		products:    products,
		carts:       carts,
		orders:      orders,
		history:     history,
		coupons:     coupons,
		shipCoupons: shipCoupons,
		tx:          tx,
		notifier:    notifier,
		shippingFee: shippingFee,
		now:         time.Now,
	}
}

// validateItems checks quantities and stock against the current catalog and
// returns the snapshotted order lines plus the server-computed item subtotal.
// No mutation happens here; placement fails closed on the first problem.
func (s *Service) validateItems(ctx context.Context, reqs []ItemRequest) ([]Item, decimal.Decimal, error) {
	if len(reqs) == 0 {
		return nil, decimal.Zero, ErrEmptyOrder
	}

	ids := make([]string, len(reqs))
	for i, r := range reqs {
		if r.Quantity <= 0 {
			return nil, decimal.Zero, &InvalidQuantityError{ProductID: r.ProductID}
		}
		ids[i] = r.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, len(reqs))
	itemsPrice := decimal.Zero
	for i, r := range reqs {
		p, ok := byID[r.ProductID]
		if !ok {
			return nil, decimal.Zero, &ProductNotFoundError{ProductID: r.ProductID}
		}
		if p.CountInStock < r.Quantity {
			return nil, decimal.Zero, &InsufficientStockError{
				ProductID: p.ID, Name: p.Name, InStock: p.CountInStock,
			}
		}
		items[i] = Item{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Image:     p.Image,
			Quantity:  r.Quantity,
		}
		itemsPrice = itemsPrice.Add(p.Price.Mul(decimal.NewFromInt(int64(r.Quantity))))
	}

	return items, itemsPrice, nil
}

// quote computes the price breakdown for the validated subtotal, resolving
// both coupon codes. Usage counters are not touched.
func (s *Service) quote(ctx context.Context, userID string, itemsPrice decimal.Decimal, couponCode, shipCouponCode string) (pricing.Quote, error) {
	discount := decimal.Zero
	if couponCode != "" {
		res, err := s.coupons.Validate(ctx, couponCode, itemsPrice, userID)
		if err != nil {
			return pricing.Quote{}, err
		}
		discount = res.Discount
	}

	shippingDiscount := decimal.Zero
	if shipCouponCode != "" {
		res, err := s.shipCoupons.Validate(ctx, shipCouponCode, s.shippingFee)
		if err != nil {
			return pricing.Quote{}, err
		}
		shippingDiscount = res.Discount
	}

	return pricing.Calculate(itemsPrice, discount, s.shippingFee, shippingDiscount), nil
}

// Preview computes the price breakdown a client should display before
// submitting, using the same validation and arithmetic as Place.
func (s *Service) Preview(ctx context.Context, userID string, req PlaceRequest) (pricing.Quote, error) {
	_, itemsPrice, err := s.validateItems(ctx, req.Items)
	if err != nil {
		return pricing.Quote{}, err
	}
	return s.quote(ctx, userID, itemsPrice, req.CouponCode, req.ShippingCouponCode)
}

// Place validates and persists a new order.
//
// Validation (items, stock, coupon eligibility) happens before any mutation.
// All mutations — stock decrements, the order insert, coupon usage
// increments, the history entry, and the cart clear — run in one storage
// transaction, so a failure partway through leaves no decremented stock
// behind. The confirmation notification is sent after commit, best-effort.
func (s *Service) Place(ctx context.Context, userID, email string, req PlaceRequest) (*Order, error) {
	items, itemsPrice, err := s.validateItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	q, err := s.quote(ctx, userID, itemsPrice, req.CouponCode, req.ShippingCouponCode)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:                 uuid.New().String(),
		UserID:             userID,
		Items:              items,
		ShippingAddress:    req.ShippingAddress,
		PaymentMethod:      req.PaymentMethod,
		ItemsPrice:         q.ItemsTotal,
		TaxPrice:           q.Tax,
		ShippingPrice:      q.ShippingFee,
		ShippingDiscount:   q.ShippingDiscount,
		Discount:           q.Discount,
		CouponCode:         req.CouponCode,
		ShippingCouponCode: req.ShippingCouponCode,
		TotalPrice:         q.Total,
		Status:             StatusPending,
		CreatedAt:          s.now(),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Conditional decrements: a concurrent order that got here first can
		// still win the last unit, in which case the whole transaction rolls
		// back and the stock error surfaces.
		for _, it := range items {
			if err := s.products.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, product.ErrInsufficientStock) {
					return &InsufficientStockError{ProductID: it.ProductID, Name: it.Name}
				}
				return errors.Wrapf(err, "decrement stock for %s", it.ProductID)
			}
		}

		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if req.CouponCode != "" {
			if _, err := s.coupons.Apply(ctx, req.CouponCode); err != nil {
				return errors.Wrap(err, "apply coupon")
			}
		}
		if req.ShippingCouponCode != "" {
			if _, err := s.shipCoupons.Apply(ctx, req.ShippingCouponCode); err != nil {
				return errors.Wrap(err, "apply shipping coupon")
			}
		}

		if err := s.history.Append(ctx, &HistoryEntry{
			ID:        uuid.New().String(),
			UserID:    userID,
			OrderID:   o.ID,
			Status:    o.Status,
			CreatedAt: s.now(),
		}); err != nil {
			return errors.Wrap(err, "append order history")
		}

		if err := s.carts.Clear(ctx, userID); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if email != "" {
		if err := s.notifier.OrderConfirmation(ctx, email, o); err != nil {
			zctx.From(ctx).Warn("Order confirmation failed",
				zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	return o, nil
}

// Get returns the order when the requester owns it or is an admin.
func (s *Service) Get(ctx context.Context, orderID, userID string, isAdmin bool) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListMine returns the requesting user's orders.
func (s *Service) ListMine(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListAll returns every order; admin only, enforced at the HTTP layer.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.orders.ListAll(ctx)
}

// History returns the user's order lifecycle history.
func (s *Service) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	return s.history.ListByUser(ctx, userID)
}

// Cancel cancels a not-yet-paid, not-yet-delivered order and restores the
// exact quantities that were decremented at placement.
func (s *Service) Cancel(ctx context.Context, orderID, userID string, isAdmin bool) error {
	o, err := s.Get(ctx, orderID, userID, isAdmin)
	if err != nil {
		return err
	}
	if o.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if o.IsPaid || o.IsDelivered {
		return ErrNotCancellable
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, it := range o.Items {
			if err := s.products.RestoreStock(ctx, it.ProductID, it.Quantity); err != nil {
				return errors.Wrapf(err, "restore stock for %s", it.ProductID)
			}
		}
		if err := s.orders.UpdateStatus(ctx, o.ID, StatusCancelled, nil); err != nil {
			return errors.Wrap(err, "update status")
		}
		return s.history.Append(ctx, &HistoryEntry{
			ID:        uuid.New().String(),
			UserID:    o.UserID,
			OrderID:   o.ID,
			Status:    StatusCancelled,
			CreatedAt: s.now(),
		})
	})
}

// UpdateStatus moves an order to the given lifecycle state. Completing an
// order marks it delivered; cancelling restores stock. Admin only, enforced
// at the HTTP layer.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Cancelled is terminal: reopening a cancelled order would let its stock
	// be restored a second time on the next cancel.
	if o.Status == StatusCancelled {
		if status == StatusCancelled {
			return nil, ErrAlreadyCancelled
		}
		return nil, ErrInvalidStatus
	}
	if status == StatusCancelled && (o.IsPaid || o.IsDelivered) {
		return nil, ErrNotCancellable
	}

	var deliveredAt *time.Time
	if status == StatusCompleted {
		t := s.now()
		deliveredAt = &t
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if status == StatusCancelled {
			for _, it := range o.Items {
				if err := s.products.RestoreStock(ctx, it.ProductID, it.Quantity); err != nil {
					return errors.Wrapf(err, "restore stock for %s", it.ProductID)
				}
			}
		}
		if err := s.orders.UpdateStatus(ctx, o.ID, status, deliveredAt); err != nil {
			return errors.Wrap(err, "update status")
		}
		return s.history.Append(ctx, &HistoryEntry{
			ID:        uuid.New().String(),
			UserID:    o.UserID,
			OrderID:   o.ID,
			Status:    status,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	o.Status = status
	if status == StatusCompleted {
		o.IsDelivered = true
		o.DeliveredAt = deliveredAt
	}
	return o, nil
}

// MarkPaid records a successful payment for the order.
func (s *Service) MarkPaid(ctx context.Context, orderID, userID string, isAdmin bool, paymentRef string) (*Order, error) {
	o, err := s.Get(ctx, orderID, userID, isAdmin)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCancelled || o.IsPaid {
		return nil, ErrNotPayable
	}
	paidAt := s.now()
	if err := s.orders.MarkPaid(ctx, o.ID, paidAt, paymentRef); err != nil {
		return nil, errors.Wrap(err, "mark paid")
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	return o, nil
}
