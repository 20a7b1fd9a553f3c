package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

func (p *Postgres) GetActiveDiscount(ctx context.Context, code string, at time.Time) (*domain.Discount, error) {
	var d domain.Discount
	err := p.db.QueryRowContext(ctx,
		`SELECT id, code, value, type, valid_from, valid_to FROM discounts
		 WHERE code = $1 AND valid_from <= $2 AND valid_to >= $2`, code, at).
		Scan(&d.ID, &d.Code, &d.Value, &d.Type, &d.ValidFrom, &d.ValidTo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("discount %q: %w", code, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query discount: %w", err)
	}
	return &d, nil
}

func (p *Postgres) GetDiscountByID(ctx context.Context, id int64) (*domain.Discount, error) {
	var d domain.Discount
	err := p.db.QueryRowContext(ctx,
		`SELECT id, code, value, type, valid_from, valid_to FROM discounts WHERE id = $1`, id).
		Scan(&d.ID, &d.Code, &d.Value, &d.Type, &d.ValidFrom, &d.ValidTo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("discount %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query discount by id: %w", err)
	}
	return &d, nil
}

func (p *Postgres) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, code, value, type, valid_from, valid_to FROM discounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query discounts: %w", err)
	}
	defer rows.Close()

	var discounts []domain.Discount
	for rows.Next() {
		var d domain.Discount
		if err := rows.Scan(&d.ID, &d.Code, &d.Value, &d.Type, &d.ValidFrom, &d.ValidTo); err != nil {
			return nil, fmt.Errorf("scan discount: %w", err)
		}
		discounts = append(discounts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("discount iteration: %w", err)
	}
	return discounts, nil
}

func (p *Postgres) CreateDiscount(ctx context.Context, d *domain.Discount) (*domain.Discount, error) {
	created := *d
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO discounts (code, value, type, valid_from, valid_to)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		d.Code, d.Value, d.Type, d.ValidFrom, d.ValidTo).Scan(&created.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, fmt.Errorf("discount code %q: %w", d.Code, domain.ErrConflict)
		}
		return nil, fmt.Errorf("insert discount: %w", err)
	}
	return &created, nil
}

func (p *Postgres) DeleteDiscount(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete discount: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("discount %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
