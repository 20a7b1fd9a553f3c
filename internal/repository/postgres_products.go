package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
)

func (p *Postgres) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	err := p.db.QueryRowContext(ctx,
		`SELECT id, description, price, available_quantity, created_at
		 FROM products WHERE id = $1`, id).
		Scan(&product.ID, &product.Description, &product.Price,
			&product.AvailableQuantity, &product.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &product, nil
}

// ListProducts pages through products that still have stock; sold-out rows
// are not listed.
func (p *Postgres) ListProducts(ctx context.Context, page, pageSize int) ([]domain.Product, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, description, price, available_quantity, created_at
		 FROM products WHERE available_quantity > 0
		 ORDER BY id LIMIT $1 OFFSET $2`, pageSize, page*pageSize)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.Description, &product.Price,
			&product.AvailableQuantity, &product.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("product iteration: %w", err)
	}
	return products, nil
}

func (p *Postgres) AddProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	created := *product
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO products (description, price, available_quantity)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		product.Description, product.Price, product.AvailableQuantity).
		Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return &created, nil
}
