package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a discount value is applied to a subtotal.
type DiscountType string

const (
	DiscountAbsolute   DiscountType = "ABSOLUTE"
	DiscountPercentage DiscountType = "PERCENTAGE"
)

// Discount is a named code with a value and an inclusive validity window.
// Immutable once created, except for deletion.
type Discount struct {
	ID        int64        `json:"id"`
	Code      string       `json:"code"`
	Value     int64        `json:"value"`
	Type      DiscountType `json:"type"`
	ValidFrom time.Time    `json:"valid_from"`
	ValidTo   time.Time    `json:"valid_to"`
}

// ActiveAt reports whether t lies within the validity window. Both ends are
// inclusive.
func (d Discount) ActiveAt(t time.Time) bool {
	return !t.Before(d.ValidFrom) && !t.After(d.ValidTo)
}

// Apply returns the subtotal after this discount, floored at zero.
func (d Discount) Apply(subtotal decimal.Decimal) decimal.Decimal {
	var total decimal.Decimal
	switch d.Type {
	case DiscountPercentage:
		cut := subtotal.Div(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(d.Value))
		total = subtotal.Sub(cut)
	default:
		total = subtotal.Sub(decimal.NewFromInt(d.Value))
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
