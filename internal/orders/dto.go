package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kt-tikotoys/storefront-backend/pkg/db/models"
	"github.com/kt-tikotoys/storefront-backend/pkg/enums"
	"github.com/kt-tikotoys/storefront-backend/pkg/types"
)

// OrderLineDTO is a frozen line item as it was priced at placement.
type OrderLineDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID             uuid.UUID            `json:"id"`
	Status         enums.OrderStatus    `json:"status"`
	ShippingMethod enums.ShippingMethod `json:"shipping_method"`
	Address        types.Address        `json:"shipping_address"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	ShippingCost   decimal.Decimal      `json:"shipping_cost"`
	Total          decimal.Decimal      `json:"total"`
	Currency       enums.Currency       `json:"currency"`
	PaymentRef     string               `json:"payment_ref,omitempty"`
	Items          []OrderLineDTO       `json:"items"`
	CreatedAt      time.Time            `json:"created_at"`
}

// OrderListResult pages orders newest first.
type OrderListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor *string    `json:"next_cursor,omitempty"`
}

// PlaceOrderInput carries everything checkout submits to materialize an order.
type PlaceOrderInput struct {
	ShippingMethod enums.ShippingMethod
	Address        types.Address
	PaymentMethod  enums.PaymentMethod
	PaymentToken   string
}

// NewOrderDTO maps a persisted order onto the API shape.
func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:             order.ID,
		Status:         order.Status,
		ShippingMethod: order.ShippingMethod,
		Address:        order.ShippingAddress,
		Subtotal:       order.Subtotal,
		ShippingCost:   order.ShippingCost,
		Total:          order.Total,
		Currency:       order.Currency,
		PaymentRef:     order.PaymentRef,
		Items:          make([]OrderLineDTO, 0, len(order.Items)),
		CreatedAt:      order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderLineDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
		})
	}
	return dto
}
