package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Price carries fixed-point decimal semantics;
// it is never converted to a float.
type Product struct {
	ID                int64           `json:"id"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity"`
	CreatedAt         time.Time       `json:"created_at"`
}
