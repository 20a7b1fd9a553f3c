package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/user"
)

type UserHandler struct {
	users *user.Service
}

func NewUserHandler(users *user.Service) *UserHandler {
	return &UserHandler{users: users}
}

type RegisterRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !strings.Contains(req.Email, "@") {
		respondError(w, http.StatusBadRequest, "invalid_email", "email must be a valid address")
		return
	}
	if len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "invalid_password", "password must be at least 6 characters")
		return
	}

	created, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}
