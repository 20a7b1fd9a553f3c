package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
	"github.com/lib/pq"
)

func (p *Postgres) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, is_admin, created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return &u, nil
}

func (p *Postgres) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, is_admin, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return &u, nil
}

func (p *Postgres) CredentialsByEmail(ctx context.Context, email string) (*domain.Credentials, error) {
	var c domain.Credentials
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash FROM users WHERE email = $1`, email).
		Scan(&c.ID, &c.Email, &c.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credentials for %q: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	return &c, nil
}

func (p *Postgres) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (p *Postgres) CreateUser(ctx context.Context, email, passwordHash string, isAdmin bool) (*domain.User, error) {
	var u domain.User
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, is_admin)
		 VALUES ($1, $2, $3) RETURNING id, email, is_admin, created_at`,
		email, passwordHash, isAdmin).
		Scan(&u.ID, &u.Email, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, fmt.Errorf("user %q: %w", email, domain.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}
