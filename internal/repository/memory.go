package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

// Memory implements every store port with mutex-guarded maps. It backs the
// unit tests and local development without a database; allocation runs under
// the same single lock as every read, so the inventory bound holds exactly as
// it does under the postgres row lock.
type Memory struct {
	mu        sync.RWMutex
	users     map[int64]*memoryUser
	products  map[int64]*domain.Product
	carts     map[int64]*memoryCart
	discounts map[int64]*domain.Discount

	nextUserID     int64
	nextProductID  int64
	nextCartID     int64
	nextDiscountID int64
}

type memoryUser struct {
	user         domain.User
	passwordHash string
}

type memoryCart struct {
	id         int64
	userID     int64
	discountID int64         // 0 = none
	lines      map[int64]int // productID -> quantity
}

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[int64]*memoryUser),
		products:  make(map[int64]*domain.Product),
		carts:     make(map[int64]*memoryCart),
		discounts: make(map[int64]*domain.Discount),
	}
}

// SeedProduct inserts a product directly, for tests and local fixtures.
func (m *Memory) SeedProduct(description string, price string, available int) *domain.Product {
	ctx := context.Background()
	p, _ := m.AddProduct(ctx, &domain.Product{
		Description:       description,
		Price:             mustDecimal(price),
		AvailableQuantity: available,
	})
	return p
}

// SeedDiscount inserts a discount directly, bypassing the conflict probe.
func (m *Memory) SeedDiscount(d domain.Discount) *domain.Discount {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDiscountID++
	d.ID = m.nextDiscountID
	m.discounts[d.ID] = &d
	return &d
}

func (m *Memory) GetUserCart(_ context.Context, userID int64) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec := m.cartOf(userID)
	if rec == nil {
		return nil, fmt.Errorf("cart for user %d: %w", userID, domain.ErrNotFound)
	}

	cart := &domain.Cart{ID: rec.id, UserID: userID}
	for productID, quantity := range rec.lines {
		product := m.products[productID]
		cart.Lines = append(cart.Lines, domain.NewCartLine(productID, product.Price, quantity))
	}
	if rec.discountID != 0 {
		if d, ok := m.discounts[rec.discountID]; ok {
			copied := *d
			cart.Discount = &copied
		}
	}
	return cart, nil
}

func (m *Memory) CreateCart(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec := m.cartOf(userID); rec != nil {
		return rec.id, nil
	}
	m.nextCartID++
	m.carts[m.nextCartID] = &memoryCart{
		id:     m.nextCartID,
		userID: userID,
		lines:  make(map[int64]int),
	}
	return m.nextCartID, nil
}

func (m *Memory) AllocateLine(_ context.Context, cartID, productID int64, requested int) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	product, ok := m.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}
	if product.AvailableQuantity == 0 {
		return nil, fmt.Errorf("product %d: %w", productID, domain.ErrNotAvailable)
	}
	rec, ok := m.carts[cartID]
	if !ok {
		return nil, fmt.Errorf("cart %d: %w", cartID, domain.ErrNotFound)
	}

	allocatedElsewhere := 0
	for _, other := range m.carts {
		if other.id != cartID {
			allocatedElsewhere += other.lines[productID]
		}
	}
	existing := rec.lines[productID]

	quantity := domain.ClampedQuantity(product.AvailableQuantity, allocatedElsewhere, existing, requested)
	if quantity >= 1 {
		rec.lines[productID] = quantity
	}

	line := domain.NewCartLine(productID, product.Price, quantity)
	return &line, nil
}

func (m *Memory) GetLine(_ context.Context, userID, productID int64) (*domain.CartLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec := m.cartOf(userID)
	if rec == nil {
		return nil, fmt.Errorf("product %d in cart of user %d: %w", productID, userID, domain.ErrNotFound)
	}
	quantity, ok := rec.lines[productID]
	if !ok {
		return nil, fmt.Errorf("product %d in cart of user %d: %w", productID, userID, domain.ErrNotFound)
	}
	line := domain.NewCartLine(productID, m.products[productID].Price, quantity)
	return &line, nil
}

func (m *Memory) UpdateLineQuantity(_ context.Context, userID, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.cartOf(userID)
	if rec == nil {
		return fmt.Errorf("cart for user %d: %w", userID, domain.ErrNotFound)
	}
	rec.lines[productID] = quantity
	return nil
}

func (m *Memory) DeleteLine(_ context.Context, userID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.cartOf(userID)
	if rec == nil {
		return fmt.Errorf("cart for user %d: %w", userID, domain.ErrNotFound)
	}
	delete(rec.lines, productID)
	return nil
}

func (m *Memory) ApplyDiscount(_ context.Context, cartID, discountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.carts[cartID]
	if !ok {
		return fmt.Errorf("cart %d: %w", cartID, domain.ErrNotFound)
	}
	rec.discountID = discountID
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	product, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	copied := *product
	return &copied, nil
}

func (m *Memory) ListProducts(_ context.Context, page, pageSize int) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var inStock []domain.Product
	for id := int64(1); id <= m.nextProductID; id++ {
		if p, ok := m.products[id]; ok && p.AvailableQuantity > 0 {
			inStock = append(inStock, *p)
		}
	}
	start := page * pageSize
	if start >= len(inStock) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(inStock) {
		end = len(inStock)
	}
	return inStock[start:end], nil
}

func (m *Memory) AddProduct(_ context.Context, p *domain.Product) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextProductID++
	created := *p
	created.ID = m.nextProductID
	created.CreatedAt = time.Now()
	m.products[created.ID] = &created
	copied := created
	return &copied, nil
}

func (m *Memory) GetActiveDiscount(_ context.Context, code string, at time.Time) (*domain.Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.discounts {
		if d.Code == code && d.ActiveAt(at) {
			copied := *d
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("discount %q: %w", code, domain.ErrNotFound)
}

func (m *Memory) GetDiscountByID(_ context.Context, id int64) (*domain.Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.discounts[id]
	if !ok {
		return nil, fmt.Errorf("discount %d: %w", id, domain.ErrNotFound)
	}
	copied := *d
	return &copied, nil
}

func (m *Memory) ListDiscounts(_ context.Context) ([]domain.Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var discounts []domain.Discount
	for id := int64(1); id <= m.nextDiscountID; id++ {
		if d, ok := m.discounts[id]; ok {
			discounts = append(discounts, *d)
		}
	}
	return discounts, nil
}

func (m *Memory) CreateDiscount(_ context.Context, d *domain.Discount) (*domain.Discount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.discounts {
		if other.Code == d.Code {
			return nil, fmt.Errorf("discount code %q: %w", d.Code, domain.ErrConflict)
		}
	}
	m.nextDiscountID++
	created := *d
	created.ID = m.nextDiscountID
	m.discounts[created.ID] = &created
	copied := created
	return &copied, nil
}

func (m *Memory) DeleteDiscount(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.discounts[id]; !ok {
		return fmt.Errorf("discount %d: %w", id, domain.ErrNotFound)
	}
	delete(m.discounts, id)
	return nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.user.Email == email {
			copied := u.user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", email, domain.ErrNotFound)
}

func (m *Memory) FindByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	copied := u.user
	return &copied, nil
}

func (m *Memory) CredentialsByEmail(_ context.Context, email string) (*domain.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.user.Email == email {
			return &domain.Credentials{ID: u.user.ID, Email: u.user.Email, PasswordHash: u.passwordHash}, nil
		}
	}
	return nil, fmt.Errorf("credentials for %q: %w", email, domain.ErrNotFound)
}

func (m *Memory) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *Memory) CreateUser(_ context.Context, email, passwordHash string, isAdmin bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.user.Email == email {
			return nil, fmt.Errorf("user %q: %w", email, domain.ErrConflict)
		}
	}
	m.nextUserID++
	u := &memoryUser{
		user: domain.User{
			ID:        m.nextUserID,
			Email:     email,
			IsAdmin:   isAdmin,
			CreatedAt: time.Now(),
		},
		passwordHash: passwordHash,
	}
	m.users[u.user.ID] = u
	copied := u.user
	return &copied, nil
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// cartOf finds a user's cart record; callers hold the lock.
func (m *Memory) cartOf(userID int64) *memoryCart {
	for _, rec := range m.carts {
		if rec.userID == userID {
			return rec
		}
	}
	return nil
}
