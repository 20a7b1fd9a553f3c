// Package discount manages the discount code directory.
package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/cache"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/repository"
)

type Service struct {
	store repository.DiscountStore
	cache *cache.Client
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store repository.DiscountStore, cacheClient *cache.Client, log zerolog.Logger) *Service {
	return &Service{store: store, cache: cacheClient, log: log, now: time.Now}
}

func codeKey(code string) cache.Key {
	return cache.Key{Namespace: cache.NSDiscounts, Name: "discount_" + code}
}

// GetActiveDiscount resolves a code to a discount whose validity window
// contains the current moment. The resolution is cached for a day; an entry
// can therefore outlive the window it proved, which is acceptable for codes
// valid on the scale of days.
func (s *Service) GetActiveDiscount(ctx context.Context, code string) (*domain.Discount, error) {
	return cache.Through(ctx, s.cache, codeKey(code), cache.TTLDay,
		func(ctx context.Context) (*domain.Discount, error) {
			return s.store.GetActiveDiscount(ctx, code, s.now())
		})
}

// ListDiscounts returns the whole directory, cached for a day.
func (s *Service) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	return cache.Through(ctx, s.cache, cache.Key{Namespace: cache.NSDiscounts, Name: "all"}, cache.TTLDay,
		func(ctx context.Context) ([]domain.Discount, error) {
			return s.store.ListDiscounts(ctx)
		})
}

// CreateDiscount registers a new code. The code is probed first: an existing
// discount means conflict, but a probe that fails for any reason other than
// absence is propagated as-is rather than misread as a free code.
func (s *Service) CreateDiscount(ctx context.Context, d *domain.Discount) (*domain.Discount, error) {
	_, err := s.store.GetActiveDiscount(ctx, d.Code, s.now())
	if err == nil {
		return nil, fmt.Errorf("discount code %q: %w", d.Code, domain.ErrConflict)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	return cache.ClearAfter(ctx, s.cache, func(ctx context.Context) (*domain.Discount, error) {
		return s.store.CreateDiscount(ctx, d)
	}, cache.Key{Namespace: cache.NSDiscounts})
}

// DeleteDiscount removes a discount and every cached entry mentioning its
// code, including per-code resolutions.
func (s *Service) DeleteDiscount(ctx context.Context, id int64) error {
	d, err := s.store.GetDiscountByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = cache.ClearAfter(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.DeleteDiscount(ctx, id)
	}, cache.Key{Namespace: cache.NSDiscounts})
	if err != nil {
		return err
	}

	s.cache.InvalidatePattern(cache.NSDiscounts + ":*" + d.Code + "*")
	return nil
}
