package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
)

// ErrNotFound is returned when a tracked product id does not exist.
var ErrNotFound = errors.New("product not found")

// ProductRepository persists tracked products in the tracked_urls table.
type ProductRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `
	id, url, stock_selector, name_selector, image_selector,
	beedspeed_code, product_name, stock_status, image_url,
	product_code, price, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.TrackedProduct, error) {
	var p models.TrackedProduct
	err := row.Scan(
		&p.ID, &p.URL, &p.StockSelector, &p.NameSelector, &p.ImageSelector,
		&p.BeedspeedCode, &p.ProductName, &p.StockStatus, &p.ImageURL,
		&p.ProductCode, &p.Price, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every tracked product, most recently refreshed first.
func (r *ProductRepository) List(ctx context.Context) ([]*models.TrackedProduct, error) {
	query := `SELECT ` + productColumns + ` FROM tracked_urls ORDER BY updated_at DESC`

	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.TrackedProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*models.TrackedProduct, error) {
	query := `SELECT ` + productColumns + ` FROM tracked_urls WHERE id = $1`

	p, err := scanProduct(r.db.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// Create inserts a new tracked product, assigning an id when none is set.
func (r *ProductRepository) Create(ctx context.Context, p *models.TrackedProduct) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO tracked_urls (
			id, url, stock_selector, name_selector, image_selector,
			beedspeed_code, product_name, stock_status, image_url,
			product_code, price, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err := r.db.pool.Exec(ctx, query,
		p.ID, p.URL, p.StockSelector, p.NameSelector, p.ImageSelector,
		p.BeedspeedCode, p.ProductName, p.StockStatus, p.ImageURL,
		p.ProductCode, p.Price, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update replaces the mutable columns of an existing product.
func (r *ProductRepository) Update(ctx context.Context, p *models.TrackedProduct) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tracked_urls
		SET url = $2, stock_selector = $3, name_selector = $4, image_selector = $5,
			beedspeed_code = $6, product_name = $7, stock_status = $8,
			image_url = $9, product_code = $10, price = $11, updated_at = $12
		WHERE id = $1`

	result, err := r.db.pool.Exec(ctx, query,
		p.ID, p.URL, p.StockSelector, p.NameSelector, p.ImageSelector,
		p.BeedspeedCode, p.ProductName, p.StockStatus, p.ImageURL,
		p.ProductCode, p.Price, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM tracked_urls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
