package domain

import "github.com/shopspring/decimal"

// CartLine is one (cart, product) allocation. Quantity is always positive in
// storage; a line whose quantity would drop below 1 is deleted instead.
type CartLine struct {
	ProductID int64           `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// NewCartLine builds a line with its subtotal filled in.
func NewCartLine(productID int64, price decimal.Decimal, quantity int) CartLine {
	return CartLine{
		ProductID: productID,
		Price:     price,
		Quantity:  quantity,
		Subtotal:  price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Cart is the view of one user's cart. OriginalPrice and Total are derived
// fields, filled by Reprice.
type Cart struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Lines         []CartLine      `json:"products"`
	Discount      *Discount       `json:"discount,omitempty"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Total         decimal.Decimal `json:"total"`
}

// Reprice recomputes every line subtotal, the pre-discount price and the
// discounted total. The total never goes below zero.
func (c *Cart) Reprice() {
	sum := decimal.Zero
	for i := range c.Lines {
		c.Lines[i].Subtotal = c.Lines[i].Price.Mul(decimal.NewFromInt(int64(c.Lines[i].Quantity)))
		sum = sum.Add(c.Lines[i].Subtotal)
	}
	c.OriginalPrice = sum
	c.Total = sum
	if c.Discount != nil {
		c.Total = c.Discount.Apply(sum)
	}
}

// ClampedQuantity decides how many units of a product a user may hold after
// requesting more. allocatedElsewhere is the product's quantity summed over
// every other cart; existing is the user's current line quantity (0 if none).
// The result is the new line quantity, clamped so the global allocation never
// exceeds available. A result of 0 means nothing may be stored.
//
// The clamp is silent: callers return the clamped quantity without signaling
// partial fulfillment. Whether that is the intended product behavior is an
// open product question; do not "fix" it here.
func ClampedQuantity(available, allocatedElsewhere, existing, requested int) int {
	headroom := available - allocatedElsewhere
	quantity := existing + requested
	if quantity > headroom {
		quantity = headroom
	}
	if quantity < 0 {
		quantity = 0
	}
	return quantity
}
