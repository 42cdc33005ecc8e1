package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgstripe "github.com/kt-tikotoys/storefront-backend/pkg/stripe"
)

// StripeProcessor charges cards through Stripe payment intents.
type StripeProcessor struct{}

// NewStripeProcessor wraps the initialized Stripe client as a Processor.
func NewStripeProcessor(client *pkgstripe.Client) (Processor, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &StripeProcessor{}, nil
}

// Charge creates and confirms a payment intent for the order amount. Card
// declines come back as a declined Outcome rather than an error so callers
// can surface them to the buyer.
func (p *StripeProcessor) Charge(ctx context.Context, input ChargeInput) (*Outcome, error) {
	if input.PaymentToken == "" {
		return &Outcome{Approved: false, DeclineReason: "missing payment token"}, nil
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("charge amount must be positive, got %s", input.Amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(minorUnits(input.Amount)),
		Currency:      stripe.String(strings.ToLower(input.Currency.String())),
		PaymentMethod: stripe.String(input.PaymentToken),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(input.Description),
		Metadata: map[string]string{
			"order_id": input.OrderID.String(),
			"user_id":  input.UserID.String(),
		},
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return &Outcome{Approved: false, DeclineReason: stripeErr.Msg}, nil
		}
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return &Outcome{
			Approved:      false,
			Reference:     intent.ID,
			DeclineReason: fmt.Sprintf("payment intent status %s", intent.Status),
		}, nil
	}

	return &Outcome{Approved: true, Reference: intent.ID}, nil
}

// minorUnits converts a two-decimal amount into integer cents.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
