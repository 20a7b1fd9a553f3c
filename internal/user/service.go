// Package user handles registration and cached account lookups.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/cache"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/repository"
)

type Service struct {
	store repository.UserStore
	cache *cache.Client
	log   zerolog.Logger
}

func NewService(store repository.UserStore, cacheClient *cache.Client, log zerolog.Logger) *Service {
	return &Service{store: store, cache: cacheClient, log: log}
}

func emailKey(email string) cache.Key {
	return cache.Key{Namespace: cache.NSUserEmail, Name: email}
}

// Register creates an account. The email is probed first; a probe failing
// with anything but absence is propagated rather than treated as either a
// free or a taken address. The very first account becomes an admin.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		return nil, fmt.Errorf("email %q: %w", email, domain.ErrConflict)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	created, err := cache.ClearAfter(ctx, s.cache, func(ctx context.Context) (*domain.User, error) {
		return s.store.CreateUser(ctx, email, string(hash), count == 0)
	},
		cache.Key{Namespace: cache.NSUserEmail},
		cache.Key{Namespace: cache.NSUserCredentials},
		cache.Key{Namespace: cache.NSNumberOfUsers, Name: "count"},
	)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("email", email).Bool("admin", created.IsAdmin).Msg("user registered")
	return created, nil
}

// FindByEmail returns the account for an email, cached for a day.
func (s *Service) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return cache.Through(ctx, s.cache, emailKey(email), cache.TTLDay,
		func(ctx context.Context) (*domain.User, error) {
			return s.store.FindByEmail(ctx, email)
		})
}

// FindByID returns the account for an id, cached for a day.
func (s *Service) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return cache.Through(ctx, s.cache, cache.Key{Namespace: cache.NSUserID, Name: fmt.Sprintf("%d", id)}, cache.TTLDay,
		func(ctx context.Context) (*domain.User, error) {
			return s.store.FindByID(ctx, id)
		})
}

// CredentialsByEmail returns the stored credentials for login checks.
func (s *Service) CredentialsByEmail(ctx context.Context, email string) (*domain.Credentials, error) {
	return cache.Through(ctx, s.cache, cache.Key{Namespace: cache.NSUserCredentials, Name: email}, cache.TTLDay,
		func(ctx context.Context) (*domain.Credentials, error) {
			return s.store.CredentialsByEmail(ctx, email)
		})
}

// VerifyPassword checks a plaintext password against the account's hash.
func (s *Service) VerifyPassword(ctx context.Context, email, password string) (*domain.User, error) {
	creds, err := s.CredentialsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("password mismatch for %q: %w", email, domain.ErrForbidden)
	}
	return s.FindByID(ctx, creds.ID)
}

// CountUsers returns the number of registered accounts, cached for a day.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	return cache.Through(ctx, s.cache, cache.Key{Namespace: cache.NSNumberOfUsers, Name: "count"}, cache.TTLDay,
		func(ctx context.Context) (int, error) {
			return s.store.CountUsers(ctx)
		})
}
