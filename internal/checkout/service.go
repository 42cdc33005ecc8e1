package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kt-tikotoys/storefront-backend/internal/cart"
	"github.com/kt-tikotoys/storefront-backend/pkg/enums"
	pkgerrors "github.com/kt-tikotoys/storefront-backend/pkg/errors"
)

type cartReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*cart.CartDTO, error)
}

// QuoteDTO is the priced checkout preview returned to clients.
type QuoteDTO struct {
	ShippingMethod enums.ShippingMethod `json:"shipping_method"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	ShippingCost   decimal.Decimal      `json:"shipping_cost"`
	Total          decimal.Decimal      `json:"total"`
	ItemCount      int                  `json:"item_count"`
	Currency       string               `json:"currency"`
}

// Service prices the caller's active cart ahead of order placement.
type Service interface {
	Preview(ctx context.Context, userID uuid.UUID, method enums.ShippingMethod) (*QuoteDTO, error)
}

type service struct {
	carts cartReader
}

// NewService builds a checkout service over the cart reader.
func NewService(carts cartReader) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	return &service{carts: carts}, nil
}

// Preview quotes subtotal, shipping, and total for the active cart. An empty
// cart is rejected so checkout never reaches payment with nothing to buy.
func (s *service) Preview(ctx context.Context, userID uuid.UUID, method enums.ShippingMethod) (*QuoteDTO, error) {
	dto, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(dto.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	shipping, err := ShippingCost(dto.Subtotal, method)
	if err != nil {
		return nil, err
	}

	return &QuoteDTO{
		ShippingMethod: method,
		Subtotal:       dto.Subtotal,
		ShippingCost:   shipping,
		Total:          Total(dto.Subtotal, shipping),
		ItemCount:      dto.ItemCount,
		Currency:       dto.Currency,
	}, nil
}
