package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-api/internal/domain/cart"
)

const (
	findCartSQL = `SELECT user_id, items, total_price, created_at, updated_at
		FROM carts WHERE user_id = $1`

	// One cart per user; writes replace the whole item list.
	saveCartSQL = `INSERT INTO carts (user_id, items, total_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET items = EXCLUDED.items, total_price = EXCLUDED.total_price, updated_at = now()`

	clearCartSQL = `DELETE FROM carts WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Items are
// stored as a JSONB snapshot since they are only ever read back whole.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// FindByUser returns the user's cart, or nil when the user has none yet.
func (r *CartRepository) FindByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := q(ctx, r.pool).Query(ctx, findCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("finding cart for %q: %w", userID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding cart for %q: %w", userID, err)
	}
	return &c, nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}

	_, err = q(ctx, r.pool).Exec(ctx, saveCartSQL, c.UserID, itemsJSON, c.TotalPrice)
	if err != nil {
		return fmt.Errorf("saving cart for %q: %w", c.UserID, err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := q(ctx, r.pool).Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart for %q: %w", userID, err)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c         cart.Cart
		itemsJSON []byte
	)
	if err := row.Scan(&c.UserID, &itemsJSON, &c.TotalPrice, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, err
	}
	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return c, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	return c, nil
}
