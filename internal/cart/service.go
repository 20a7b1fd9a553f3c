// Package cart implements the inventory-aware cart engine: it allocates
// scarce product quantity across carts, computes discounted totals and keeps
// the cached cart view coherent with the store.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/cache"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/events"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/repository"
)

// ProductGetter is the slice of the catalog the engine needs: a cached,
// read-only product lookup.
type ProductGetter interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

// DiscountGetter looks up a discount code that is active right now.
type DiscountGetter interface {
	GetActiveDiscount(ctx context.Context, code string) (*domain.Discount, error)
}

type Service struct {
	store     repository.CartStore
	products  ProductGetter
	discounts DiscountGetter
	cache     *cache.Client
	events    events.Publisher
	log       zerolog.Logger
	sfg       singleflight.Group // collapses concurrent cart view misses
}

func NewService(store repository.CartStore, products ProductGetter, discounts DiscountGetter,
	cacheClient *cache.Client, publisher events.Publisher, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		products:  products,
		discounts: discounts,
		cache:     cacheClient,
		events:    publisher,
		log:       log,
	}
}

func cartKey(userID int64) cache.Key {
	return cache.Key{Namespace: cache.NSCart, Name: fmt.Sprintf("user_%d", userID)}
}

// AddToCart allocates requested units of a product into the user's cart,
// creating the cart on first use. The stored quantity is clamped to the
// product's remaining headroom; a clamped (even zero) result is returned
// without error. On success the cached cart view is invalidated.
func (s *Service) AddToCart(ctx context.Context, userID, productID int64, requested int) (*domain.CartLine, error) {
	if requested < 1 {
		requested = 1
	}

	cartID, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.AvailableQuantity == 0 {
		return nil, fmt.Errorf("product %d: %w", productID, domain.ErrNotAvailable)
	}

	line, err := cache.ClearAfter(ctx, s.cache, func(ctx context.Context) (*domain.CartLine, error) {
		return s.store.AllocateLine(ctx, cartID, productID, requested)
	}, cartKey(userID))
	if err != nil {
		return nil, err
	}

	if line.Quantity < requested {
		s.log.Debug().Int64("user", userID).Int64("product", productID).
			Int("requested", requested).Int("stored", line.Quantity).
			Msg("allocation clamped to headroom")
	}
	s.events.Publish(ctx, events.Event{
		Type:      events.TypeItemAdded,
		UserID:    userID,
		ProductID: productID,
		Quantity:  line.Quantity,
	})
	return line, nil
}

// RemoveFromCart reduces the user's line by quantity. A zero quantity, or a
// remainder below 1, deletes the line entirely.
func (s *Service) RemoveFromCart(ctx context.Context, userID, productID int64, quantity int) error {
	line, err := s.store.GetLine(ctx, userID, productID)
	if err != nil {
		return err
	}

	remainder := line.Quantity - quantity
	_, err = cache.ClearAfter(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		if quantity == 0 || remainder < 1 {
			return struct{}{}, s.store.DeleteLine(ctx, userID, productID)
		}
		return struct{}{}, s.store.UpdateLineQuantity(ctx, userID, productID, remainder)
	}, cartKey(userID))
	if err != nil {
		return err
	}

	s.events.Publish(ctx, events.Event{
		Type:      events.TypeItemRemoved,
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
	return nil
}

// GetUserCart returns the priced cart view. The view is cached for an hour
// and recomputed through the store on a miss.
func (s *Service) GetUserCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(fmt.Sprintf("cart_%d", userID), func() (interface{}, error) {
		return cache.Through(ctx, s.cache, cartKey(userID), cache.TTLHour,
			func(ctx context.Context) (*domain.Cart, error) {
				cart, err := s.store.GetUserCart(ctx, userID)
				if err != nil {
					return nil, err
				}
				cart.Reprice()
				return cart, nil
			})
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// ApplyDiscountToCart attaches an active discount code to the user's cart.
// cartID is cross-checked against the user's actual cart: carts are never
// addressed by untrusted id without an ownership check. Applying over an
// existing discount overwrites it.
func (s *Service) ApplyDiscountToCart(ctx context.Context, userID, cartID int64, code string) (*domain.Discount, error) {
	var userCart *domain.Cart
	var discount *domain.Discount

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		userCart, err = s.GetUserCart(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		discount, err = s.discounts.GetActiveDiscount(gctx, code)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if userCart.ID != cartID {
		return nil, fmt.Errorf("cart %d is not accessible for user %d: %w", cartID, userID, domain.ErrForbidden)
	}

	_, err := cache.ClearAfter(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.ApplyDiscount(ctx, userCart.ID, discount.ID)
	}, cartKey(userID))
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.Event{
		Type:   events.TypeDiscountApplied,
		UserID: userID,
		Code:   discount.Code,
	})
	return discount, nil
}

// getOrCreateCart resolves the user's cart id, creating the cart lazily on
// first use.
func (s *Service) getOrCreateCart(ctx context.Context, userID int64) (int64, error) {
	existing, err := s.store.GetUserCart(ctx, userID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}
	return s.store.CreateCart(ctx, userID)
}
