package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kt-tikotoys/storefront-backend/pkg/enums"
)

// ChargeInput carries everything needed to capture a payment.
type ChargeInput struct {
	UserID        uuid.UUID
	OrderID       uuid.UUID
	Amount        decimal.Decimal
	Currency      enums.Currency
	Method        enums.PaymentMethod
	PaymentToken  string
	Description   string
	CustomerEmail string
}

// Outcome is the processor's verdict on a charge attempt.
type Outcome struct {
	Approved      bool
	Reference     string
	DeclineReason string
}

// Processor is the single payment boundary. Implementations must return a
// declined Outcome (not an error) when the charge is rejected by the issuer;
// errors are reserved for transport or configuration failures.
type Processor interface {
	Charge(ctx context.Context, input ChargeInput) (*Outcome, error)
}
