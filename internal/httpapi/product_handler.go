package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/catalog"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
)

type ProductHandler struct {
	products *catalog.Service
}

func NewProductHandler(products *catalog.Service) *ProductHandler {
	return &ProductHandler{products: products}
}

type AddProductRequestDTO struct {
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity"`
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return
	}

	product, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	products, err := h.products.ListProducts(r.Context(), page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req AddProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Description == "" {
		respondError(w, http.StatusBadRequest, "invalid_description", "description must not be empty")
		return
	}
	if req.Price.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_price", "price must not be negative")
		return
	}
	if req.AvailableQuantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "available_quantity must not be negative")
		return
	}

	created, err := h.products.AddProduct(r.Context(), &domain.Product{
		Description:       req.Description,
		Price:             req.Price,
		AvailableQuantity: req.AvailableQuantity,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}
