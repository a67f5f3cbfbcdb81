package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-api/internal/domain/order"
)

const (
	orderColumns = `id, user_id, items, shipping_address, payment_method,
		items_price, discount, coupon_code, shipping_price, shipping_discount,
		shipping_coupon_code, tax_price, total_price, status,
		is_paid, paid_at, is_delivered, delivered_at, created_at`

	createOrderSQL = `INSERT INTO orders (id, user_id, items, shipping_address,
		payment_method, items_price, discount, coupon_code, shipping_price,
		shipping_discount, shipping_coupon_code, tax_price, total_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $2,
		is_delivered = CASE WHEN $3::timestamptz IS NULL THEN is_delivered ELSE TRUE END,
		delivered_at = COALESCE($3, delivered_at)
		WHERE id = $1`

	markOrderPaidSQL = `UPDATE orders SET is_paid = TRUE, paid_at = $2, payment_ref = $3
		WHERE id = $1`

	appendHistorySQL = `INSERT INTO order_history (id, user_id, order_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	listHistoryByUserSQL = `SELECT id, user_id, order_id, status, created_at
		FROM order_history WHERE user_id = $1 ORDER BY created_at DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items and the shipping address are immutable after creation and stored as
// JSONB snapshots.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = q(ctx, r.pool).Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, addressJSON, o.PaymentMethod,
		o.ItemsPrice, o.Discount, o.CouponCode, o.ShippingPrice,
		o.ShippingDiscount, o.ShippingCouponCode, o.TaxPrice, o.TotalPrice,
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := q(ctx, r.pool).Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := q(ctx, r.pool).Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	rows, err := q(ctx, r.pool).Query(ctx, listAllOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, deliveredAt *time.Time) error {
	tag, err := q(ctx, r.pool).Exec(ctx, updateOrderStatusSQL, id, string(status), deliveredAt)
	if err != nil {
		return fmt.Errorf("updating status for order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time, paymentRef string) error {
	tag, err := q(ctx, r.pool).Exec(ctx, markOrderPaidSQL, id, paidAt, paymentRef)
	if err != nil {
		return fmt.Errorf("marking order %q paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		itemsJSON   []byte
		addressJSON []byte
		status      string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &addressJSON, &o.PaymentMethod,
		&o.ItemsPrice, &o.Discount, &o.CouponCode, &o.ShippingPrice,
		&o.ShippingDiscount, &o.ShippingCouponCode, &o.TaxPrice, &o.TotalPrice,
		&status, &o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	return o, nil
}

var _ order.HistoryRepository = (*OrderHistoryRepository)(nil)

// OrderHistoryRepository implements order.HistoryRepository backed by
// PostgreSQL.
type OrderHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewOrderHistoryRepository returns a repository that uses the given pool.
func NewOrderHistoryRepository(pool *pgxpool.Pool) *OrderHistoryRepository {
	return &OrderHistoryRepository{pool: pool}
}

func (r *OrderHistoryRepository) Append(ctx context.Context, e *order.HistoryEntry) error {
	_, err := q(ctx, r.pool).Exec(ctx, appendHistorySQL,
		e.ID, e.UserID, e.OrderID, string(e.Status), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending order history: %w", err)
	}
	return nil
}

func (r *OrderHistoryRepository) ListByUser(ctx context.Context, userID string) ([]order.HistoryEntry, error) {
	rows, err := q(ctx, r.pool).Query(ctx, listHistoryByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing order history for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.HistoryEntry, error) {
		var (
			e      order.HistoryEntry
			status string
		)
		err := row.Scan(&e.ID, &e.UserID, &e.OrderID, &status, &e.CreatedAt)
		e.Status = order.Status(status)
		return e, err
	})
}
