package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/cache"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/cart"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/catalog"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/discount"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/events"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/repository"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/user"
)

func setupServer(t *testing.T) (*httptest.Server, *repository.Memory) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := cache.New(rdb, "", zerolog.Nop())
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(c.Close)

	store := repository.NewMemory()
	nop := zerolog.Nop()
	catalogSvc := catalog.NewService(store, c, nop)
	discountSvc := discount.NewService(store, c, nop)
	cartSvc := cart.NewService(store, catalogSvc, discountSvc, c, events.Nop{}, nop)
	userSvc := user.NewService(store, c, nop)

	router := NewRouter(
		NewCartHandler(cartSvc),
		NewProductHandler(catalogSvc),
		NewDiscountHandler(discountSvc),
		NewUserHandler(userSvc),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, userID int64, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if userID != 0 {
		req.Header.Set("X-User-ID", fmt.Sprint(userID))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetCart_Unauthorized(t *testing.T) {
	srv, _ := setupServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/cart/", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAddItem_CreatesLine(t *testing.T) {
	srv, store := setupServer(t)
	product := store.SeedProduct("keyboard", "25.00", 10)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/cart/items", 1,
		AddItemRequestDTO{ProductID: product.ID, Quantity: 3})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var line domain.CartLine
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&line))
	assert.Equal(t, 3, line.Quantity)
}

func TestAddItem_InvalidBody(t *testing.T) {
	srv, _ := setupServer(t)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/cart/items", bytes.NewBufferString("{"))
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddItem_SoldOut(t *testing.T) {
	srv, store := setupServer(t)
	product := store.SeedProduct("keyboard", "25.00", 0)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/cart/items", 1,
		AddItemRequestDTO{ProductID: product.ID, Quantity: 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRemoveItem(t *testing.T) {
	srv, store := setupServer(t)
	product := store.SeedProduct("keyboard", "25.00", 10)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/cart/items", 1,
		AddItemRequestDTO{ProductID: product.ID, Quantity: 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/v1/cart/items/%d", srv.URL, product.ID), 1,
		RemoveItemRequestDTO{Quantity: 0})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/v1/cart/items/%d", srv.URL, product.ID), 1,
		RemoveItemRequestDTO{Quantity: 0})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "line already gone")
}

func TestApplyDiscount_ForeignCartForbidden(t *testing.T) {
	srv, store := setupServer(t)
	product := store.SeedProduct("keyboard", "25.00", 10)
	store.SeedDiscount(domain.Discount{
		Code:      "SAVE10",
		Value:     10,
		Type:      domain.DiscountPercentage,
		ValidFrom: time.Now().Add(-time.Hour),
		ValidTo:   time.Now().Add(time.Hour),
	})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/cart/items", 1,
		AddItemRequestDTO{ProductID: product.ID, Quantity: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/cart/items", 2,
		AddItemRequestDTO{ProductID: product.ID, Quantity: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/cart/", 1, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var victim domain.Cart
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&victim))

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/cart/%d/discount", srv.URL, victim.ID), 2,
		ApplyDiscountRequestDTO{Code: "SAVE10"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetProduct_NotFound(t *testing.T) {
	srv, _ := setupServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/products/404", 0, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListProducts_EmptyIsArray(t *testing.T) {
	srv, _ := setupServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/products/", 0, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []domain.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestCreateDiscount_DuplicateConflicts(t *testing.T) {
	srv, _ := setupServer(t)
	body := CreateDiscountRequestDTO{
		Code:      "TWICE",
		Value:     10,
		Type:      "PERCENTAGE",
		ValidFrom: time.Now().Add(-time.Hour),
		ValidTo:   time.Now().Add(time.Hour),
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/discounts/", 0, body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/discounts/", 0, body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateDiscount_RejectsUnknownType(t *testing.T) {
	srv, _ := setupServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/discounts/", 0, CreateDiscountRequestDTO{
		Code:      "BAD",
		Value:     10,
		Type:      "RELATIVE",
		ValidFrom: time.Now(),
		ValidTo:   time.Now().Add(time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	srv, _ := setupServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/register", 0,
		RegisterRequestDTO{Email: "user@example.com", Password: "s3cret"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/register", 0,
		RegisterRequestDTO{Email: "user@example.com", Password: "s3cret"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
