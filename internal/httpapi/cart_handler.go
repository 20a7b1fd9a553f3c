package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/cart"
)

type CartHandler struct {
	carts *cart.Service
}

func NewCartHandler(carts *cart.Service) *CartHandler {
	return &CartHandler{carts: carts}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type RemoveItemRequestDTO struct {
	Quantity int `json:"quantity"`
}

type ApplyDiscountRequestDTO struct {
	Code string `json:"code"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	result, err := h.carts.GetUserCart(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	line, err := h.carts.AddToCart(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, line)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req RemoveItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not be negative")
		return
	}

	if err := h.carts.RemoveFromCart(r.Context(), userID, productID, req.Quantity); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cartID, err := strconv.ParseInt(chi.URLParam(r, "cart_id"), 10, 64)
	if err != nil || cartID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_cart_id", "cart_id must be a positive integer")
		return
	}

	var req ApplyDiscountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_code", "code must not be empty")
		return
	}

	applied, err := h.carts.ApplyDiscountToCart(r.Context(), userID, cartID, req.Code)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, applied)
}
