package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kt-tikotoys/storefront-backend/api/middleware"
	cartsvc "github.com/kt-tikotoys/storefront-backend/internal/cart"
	"github.com/kt-tikotoys/storefront-backend/pkg/db/models"
	pkgerrors "github.com/kt-tikotoys/storefront-backend/pkg/errors"
)

type stubCartService struct {
	cart *cartsvc.CartDTO
	err  error

	addedProduct uuid.UUID
	addedQty     int
	setProduct   uuid.UUID
	setQty       int
	removed      uuid.UUID
	cleared      bool
}

func (s *stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.CartDTO, error) {
	s.addedProduct = productID
	s.addedQty = quantity
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.removed = productID
	return s.cart, s.err
}

func (s *stubCartService) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.CartDTO, error) {
	s.setProduct = productID
	s.setQty = quantity
	return s.cart, s.err
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	s.cleared = true
	return s.err
}

func (s *stubCartService) ActiveRecord(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	return nil, nil
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func sampleCart() *cartsvc.CartDTO {
	return &cartsvc.CartDTO{
		ID: uuid.New(),
		Lines: []cartsvc.CartLineDTO{{
			ProductID: uuid.New(),
			Name:      "wooden train set",
			UnitPrice: decimal.RequireFromString("24.50"),
			Quantity:  2,
			LineTotal: decimal.RequireFromString("49.00"),
		}},
		Subtotal:  decimal.RequireFromString("49.00"),
		ItemCount: 2,
		Currency:  "EUR",
	}
}

func TestCartFetchSuccess(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	handler := CartFetch(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/cart", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data cartsvc.CartDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != svc.cart.ID {
		t.Fatalf("unexpected cart id: %s", envelope.Data.ID)
	}
	if !envelope.Data.Subtotal.Equal(decimal.RequireFromString("49.00")) {
		t.Fatalf("unexpected subtotal: %s", envelope.Data.Subtotal)
	}
}

func TestCartFetchMissingUserContext(t *testing.T) {
	handler := CartFetch(&stubCartService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemSuccess(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	handler := CartAddItem(svc, nil)

	productID := uuid.New()
	body := `{"product_id":"` + productID.String() + `","quantity":3}`

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.addedProduct != productID {
		t.Fatalf("unexpected product id passed to service: %s", svc.addedProduct)
	}
	if svc.addedQty != 3 {
		t.Fatalf("unexpected quantity passed to service: %d", svc.addedQty)
	}
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	handler := CartAddItem(&stubCartService{}, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":0}`

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartAddItemUnknownProduct(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	handler := CartAddItem(svc, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":1}`

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCartSetQuantityPassesExactValue(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	handler := CartSetQuantity(svc, nil)

	productID := uuid.New()
	req := authedRequest(http.MethodPut, "/api/v1/cart/items/"+productID.String(), `{"quantity":7}`)
	req = withURLParam(req, "productId", productID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.setProduct != productID {
		t.Fatalf("unexpected product id: %s", svc.setProduct)
	}
	if svc.setQty != 7 {
		t.Fatalf("unexpected quantity: %d", svc.setQty)
	}
}

func TestCartSetQuantityZeroDelegatesRemoval(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	handler := CartSetQuantity(svc, nil)

	productID := uuid.New()
	req := authedRequest(http.MethodPut, "/api/v1/cart/items/"+productID.String(), `{"quantity":0}`)
	req = withURLParam(req, "productId", productID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.setQty != 0 {
		t.Fatalf("zero quantity should reach the service unchanged, got %d", svc.setQty)
	}
}

func TestCartRemoveItemInvalidID(t *testing.T) {
	handler := CartRemoveItem(&stubCartService{}, nil)

	req := authedRequest(http.MethodDelete, "/api/v1/cart/items/not-a-uuid", "")
	req = withURLParam(req, "productId", "not-a-uuid")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartClear(t *testing.T) {
	svc := &stubCartService{}
	handler := CartClear(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodDelete, "/api/v1/cart", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !svc.cleared {
		t.Fatal("expected clear to reach the service")
	}
}
