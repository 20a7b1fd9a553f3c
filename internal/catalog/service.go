// Package catalog serves cached product reads and admin product writes.
package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/cache"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/repository"
)

type Service struct {
	store repository.ProductStore
	cache *cache.Client
	log   zerolog.Logger
}

func NewService(store repository.ProductStore, cacheClient *cache.Client, log zerolog.Logger) *Service {
	return &Service{store: store, cache: cacheClient, log: log}
}

func productKey(id int64) cache.Key {
	return cache.Key{Namespace: cache.NSProduct, Name: fmt.Sprintf("%d", id)}
}

func pageKey(page, pageSize int) cache.Key {
	return cache.Key{Namespace: cache.NSProducts, Name: fmt.Sprintf("page_%d_pageSize_%d", page, pageSize)}
}

// GetProduct returns one product, cached for an hour.
func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return cache.Through(ctx, s.cache, productKey(id), cache.TTLHour,
		func(ctx context.Context) (*domain.Product, error) {
			return s.store.GetProduct(ctx, id)
		})
}

// ListProducts pages through in-stock products. Each page is cached
// independently for a day.
func (s *Service) ListProducts(ctx context.Context, page, pageSize int) ([]domain.Product, error) {
	if page < 0 {
		page = 0
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return cache.Through(ctx, s.cache, pageKey(page, pageSize), cache.TTLDay,
		func(ctx context.Context) ([]domain.Product, error) {
			return s.store.ListProducts(ctx, page, pageSize)
		})
}

// AddProduct inserts a product and drops every cached listing page, since any
// of them may now be stale.
func (s *Service) AddProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	return cache.ClearAfter(ctx, s.cache, func(ctx context.Context) (*domain.Product, error) {
		return s.store.AddProduct(ctx, p)
	}, cache.Key{Namespace: cache.NSProducts})
}
