// Package repository defines the persistence ports of the cart engine and
// their postgres and in-memory implementations.
package repository

import (
	"context"
	"time"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
)

// CartStore owns carts and their lines. Implementations must guarantee that
// AllocateLine never lets the quantity of a product summed across all carts
// exceed its available quantity: the clamp decision and the write happen
// under one lock (row lock in postgres, mutex in memory).
type CartStore interface {
	// GetUserCart returns the user's cart with lines and any applied
	// discount joined in. Totals are left to the caller.
	GetUserCart(ctx context.Context, userID int64) (*domain.Cart, error)

	// CreateCart lazily creates the user's cart and returns its id.
	CreateCart(ctx context.Context, userID int64) (int64, error)

	// AllocateLine inserts or grows the cart's line for a product, clamped
	// to the product's remaining headroom. The returned line carries the
	// stored quantity; Quantity 0 means nothing was written (silent clamp).
	AllocateLine(ctx context.Context, cartID, productID int64, requested int) (*domain.CartLine, error)

	// GetLine returns the user's line for a product.
	GetLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error)

	UpdateLineQuantity(ctx context.Context, userID, productID int64, quantity int) error
	DeleteLine(ctx context.Context, userID, productID int64) error

	// ApplyDiscount sets the cart's discount reference, overwriting any
	// previously applied one.
	ApplyDiscount(ctx context.Context, cartID, discountID int64) error
}

type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	// ListProducts pages through products that still have stock.
	ListProducts(ctx context.Context, page, pageSize int) ([]domain.Product, error)
	AddProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
}

type DiscountStore interface {
	// GetActiveDiscount returns the discount with this code whose validity
	// window contains at (both ends inclusive).
	GetActiveDiscount(ctx context.Context, code string, at time.Time) (*domain.Discount, error)
	GetDiscountByID(ctx context.Context, id int64) (*domain.Discount, error)
	ListDiscounts(ctx context.Context) ([]domain.Discount, error)
	CreateDiscount(ctx context.Context, d *domain.Discount) (*domain.Discount, error)
	DeleteDiscount(ctx context.Context, id int64) error
}

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	CredentialsByEmail(ctx context.Context, email string) (*domain.Credentials, error)
	CountUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, email, passwordHash string, isAdmin bool) (*domain.User, error)
}
