package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires all handlers behind the shared middleware stack.
func NewRouter(carts *CartHandler, products *ProductHandler, discounts *DiscountHandler, users *UserHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(HeaderAuthMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Post("/items", carts.AddItem)
			r.Delete("/items/{product_id}", carts.RemoveItem)
			r.Post("/{cart_id}/discount", carts.ApplyDiscount)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.ListProducts)
			r.Get("/{id}", products.GetProduct)
			r.Post("/", products.AddProduct)
		})
		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", discounts.ListDiscounts)
			r.Post("/", discounts.CreateDiscount)
			r.Delete("/{id}", discounts.DeleteDiscount)
		})
		r.Post("/users/register", users.Register)
	})

	return r
}
