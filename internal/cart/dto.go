package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLineDTO is a single cart line with catalog details resolved live.
type CartLineDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	Image     *string         `json:"image,omitempty"`
}

// CartDTO is the cart view returned to clients. Subtotal and item count are
// always recomputed from the lines, never stored.
type CartDTO struct {
	ID        uuid.UUID       `json:"id"`
	Lines     []CartLineDTO   `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
	Currency  string          `json:"currency"`
}
