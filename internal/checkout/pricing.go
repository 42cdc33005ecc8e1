package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/kt-tikotoys/storefront-backend/pkg/enums"
	pkgerrors "github.com/kt-tikotoys/storefront-backend/pkg/errors"
)

var (
	standardShippingFee = decimal.RequireFromString("5.99")
	expressShippingFee  = decimal.RequireFromString("9.99")

	// Standard shipping is free only when the subtotal strictly exceeds
	// the threshold. A subtotal of exactly 50.00 still pays the fee.
	freeShippingThreshold = decimal.NewFromInt(50)
)

// ShippingCost quotes the shipping fee for the given subtotal and method.
func ShippingCost(subtotal decimal.Decimal, method enums.ShippingMethod) (decimal.Decimal, error) {
	switch method {
	case enums.ShippingMethodStandard:
		if subtotal.GreaterThan(freeShippingThreshold) {
			return decimal.Zero, nil
		}
		return standardShippingFee, nil
	case enums.ShippingMethodExpress:
		return expressShippingFee, nil
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping method")
	}
}

// Total sums subtotal and shipping, rounding half-up to two decimals at the
// final step only. Intermediate line totals are never rounded.
func Total(subtotal, shipping decimal.Decimal) decimal.Decimal {
	return subtotal.Add(shipping).Round(2)
}
