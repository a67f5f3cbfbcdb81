package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-api/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, price, image, category, count_in_stock
		FROM products ORDER BY name`

	getProductSQL = `SELECT id, name, description, price, image, category, count_in_stock
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, description, price, image, category, count_in_stock
		FROM products WHERE id = ANY($1)`

	createProductSQL = `INSERT INTO products (id, name, description, price, image, category, count_in_stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	updateProductSQL = `UPDATE products SET name = $2, description = $3, price = $4,
		image = $5, category = $6, count_in_stock = $7 WHERE id = $1`

	// Decrement only while stock covers the quantity; zero rows affected
	// means a concurrent order won the remaining units.
	decrementStockSQL = `UPDATE products SET count_in_stock = count_in_stock - $2
		WHERE id = $1 AND count_in_stock >= $2`

	restoreStockSQL = `UPDATE products SET count_in_stock = count_in_stock + $2 WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := q(ctx, r.pool).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := q(ctx, r.pool).Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := q(ctx, r.pool).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := q(ctx, r.pool).Exec(ctx, createProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.CountInStock,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := q(ctx, r.pool).Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.CountInStock,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// DecrementStock atomically takes qty units off the shelf. The conditional
// UPDATE keeps stock from going negative under concurrent orders.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	tag, err := q(ctx, r.pool).Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock for %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrInsufficientStock
	}
	return nil
}

func (r *ProductRepository) RestoreStock(ctx context.Context, id string, qty int) error {
	tag, err := q(ctx, r.pool).Exec(ctx, restoreStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("restoring stock for %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		stock int32
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.Category, &stock)
	p.CountInStock = int(stock)
	return p, err
}
