package controllers

import (
	"net/http"
	"strings"

	"github.com/kt-tikotoys/storefront-backend/api/responses"
	checkoutsvc "github.com/kt-tikotoys/storefront-backend/internal/checkout"
	"github.com/kt-tikotoys/storefront-backend/pkg/enums"
	pkgerrors "github.com/kt-tikotoys/storefront-backend/pkg/errors"
	"github.com/kt-tikotoys/storefront-backend/pkg/logger"
)

// CheckoutQuote prices the caller's cart for the requested shipping method.
func CheckoutQuote(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("shipping_method"))
		if raw == "" {
			raw = enums.ShippingMethodStandard.String()
		}
		method, err := enums.ParseShippingMethod(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping method"))
			return
		}

		quote, err := svc.Preview(r.Context(), userID, method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quote)
	}
}
