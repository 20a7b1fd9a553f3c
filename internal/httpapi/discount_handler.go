package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/discount"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/domain"
)

type DiscountHandler struct {
	discounts *discount.Service
}

func NewDiscountHandler(discounts *discount.Service) *DiscountHandler {
	return &DiscountHandler{discounts: discounts}
}

type CreateDiscountRequestDTO struct {
	Code      string    `json:"code"`
	Value     int64     `json:"value"`
	Type      string    `json:"type"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
}

func (h *DiscountHandler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := h.discounts.ListDiscounts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if discounts == nil {
		discounts = []domain.Discount{}
	}
	respondJSON(w, http.StatusOK, discounts)
}

func (h *DiscountHandler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req CreateDiscountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_code", "code must not be empty")
		return
	}
	kind := domain.DiscountType(req.Type)
	if kind != domain.DiscountAbsolute && kind != domain.DiscountPercentage {
		respondError(w, http.StatusBadRequest, "invalid_type", "type must be ABSOLUTE or PERCENTAGE")
		return
	}
	if req.Value <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_value", "value must be positive")
		return
	}
	if !req.ValidTo.After(req.ValidFrom) {
		respondError(w, http.StatusBadRequest, "invalid_window", "valid_to must be after valid_from")
		return
	}

	created, err := h.discounts.CreateDiscount(r.Context(), &domain.Discount{
		Code:      req.Code,
		Value:     req.Value,
		Type:      kind,
		ValidFrom: req.ValidFrom,
		ValidTo:   req.ValidTo,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *DiscountHandler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return
	}

	if err := h.discounts.DeleteDiscount(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
