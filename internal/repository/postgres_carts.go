package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

func (p *Postgres) GetUserCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	var cart domain.Cart
	var discountID sql.NullInt64
	err := p.db.QueryRowContext(ctx,
		`SELECT id, user_id, discount_id FROM carts WHERE user_id = $1`, userID).
		Scan(&cart.ID, &cart.UserID, &discountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart for user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT l.product_id, pr.price, l.quantity
		 FROM cart_lines l JOIN products pr ON pr.id = l.product_id
		 WHERE l.cart_id = $1`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var price decimal.Decimal
		var quantity int
		if err := rows.Scan(&productID, &price, &quantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, domain.NewCartLine(productID, price, quantity))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart line iteration: %w", err)
	}

	if discountID.Valid {
		discount, err := p.GetDiscountByID(ctx, discountID.Int64)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		cart.Discount = discount
	}

	return &cart, nil
}

func (p *Postgres) CreateCart(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO carts (user_id) VALUES ($1) RETURNING id`, userID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create cart for user %d: %w", userID, err)
	}
	return id, nil
}

// AllocateLine runs the whole allocation decision inside one transaction with
// the product row locked, so two concurrent adds cannot both observe stale
// headroom and oversell the product.
func (p *Postgres) AllocateLine(ctx context.Context, cartID, productID int64, requested int) (*domain.CartLine, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin allocation: %w", err)
	}
	defer tx.Rollback()

	var price decimal.Decimal
	var available int
	err = tx.QueryRowContext(ctx,
		`SELECT price, available_quantity FROM products WHERE id = $1 FOR UPDATE`, productID).
		Scan(&price, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock product row: %w", err)
	}
	if available == 0 {
		return nil, fmt.Errorf("product %d: %w", productID, domain.ErrNotAvailable)
	}

	var allocatedElsewhere int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM cart_lines
		 WHERE product_id = $1 AND cart_id <> $2`, productID, cartID).
		Scan(&allocatedElsewhere)
	if err != nil {
		return nil, fmt.Errorf("sum product allocations: %w", err)
	}

	existing := 0
	err = tx.QueryRowContext(ctx,
		`SELECT quantity FROM cart_lines WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query existing line: %w", err)
	}

	quantity := domain.ClampedQuantity(available, allocatedElsewhere, existing, requested)
	switch {
	case quantity < 1:
		// headroom exhausted: nothing stored, the clamp is reported silently
	case existing == 0:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cart_lines (cart_id, product_id, quantity) VALUES ($1, $2, $3)`,
			cartID, productID, quantity)
	case quantity != existing:
		_, err = tx.ExecContext(ctx,
			`UPDATE cart_lines SET quantity = $3 WHERE cart_id = $1 AND product_id = $2`,
			cartID, productID, quantity)
	}
	if err != nil {
		return nil, fmt.Errorf("write cart line: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}

	line := domain.NewCartLine(productID, price, quantity)
	return &line, nil
}

func (p *Postgres) GetLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error) {
	var price decimal.Decimal
	var quantity int
	err := p.db.QueryRowContext(ctx,
		`SELECT pr.price, l.quantity
		 FROM cart_lines l
		 JOIN carts c ON c.id = l.cart_id
		 JOIN products pr ON pr.id = l.product_id
		 WHERE c.user_id = $1 AND l.product_id = $2`, userID, productID).
		Scan(&price, &quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d in cart of user %d: %w", productID, userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query cart line: %w", err)
	}
	line := domain.NewCartLine(productID, price, quantity)
	return &line, nil
}

func (p *Postgres) UpdateLineQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE cart_lines SET quantity = $3
		 FROM carts c
		 WHERE cart_lines.cart_id = c.id AND c.user_id = $1 AND cart_lines.product_id = $2`,
		userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteLine(ctx context.Context, userID, productID int64) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM cart_lines USING carts c
		 WHERE cart_lines.cart_id = c.id AND c.user_id = $1 AND cart_lines.product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (p *Postgres) ApplyDiscount(ctx context.Context, cartID, discountID int64) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE carts SET discount_id = $2 WHERE id = $1`, cartID, discountID)
	if err != nil {
		return fmt.Errorf("apply discount: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cart %d: %w", cartID, domain.ErrNotFound)
	}
	return nil
}
