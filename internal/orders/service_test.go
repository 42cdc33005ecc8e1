package orders

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kt-tikotoys/storefront-backend/internal/cart"
	"github.com/kt-tikotoys/storefront-backend/internal/payments"
	"github.com/kt-tikotoys/storefront-backend/pkg/db/models"
	"github.com/kt-tikotoys/storefront-backend/pkg/enums"
	pkgerrors "github.com/kt-tikotoys/storefront-backend/pkg/errors"
	"github.com/kt-tikotoys/storefront-backend/pkg/logger"
	"github.com/kt-tikotoys/storefront-backend/pkg/outbox"
	"github.com/kt-tikotoys/storefront-backend/pkg/pagination"
	"github.com/kt-tikotoys/storefront-backend/pkg/types"
)

type stubOrderRepo struct {
	orders     map[uuid.UUID]*models.Order
	failCreate bool
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (r *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubOrderRepo) Create(ctx context.Context, order *models.Order) error {
	if r.failCreate {
		return fmt.Errorf("insert failed")
	}
	stored := *order
	r.orders[order.ID] = &stored
	return nil
}

func (r *stubOrderRepo) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	order := r.orders[items[0].OrderID]
	order.Items = append(order.Items, items...)
	return nil
}

func (r *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	return &clone, nil
}

func (r *stubOrderRepo) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[id]
	if !ok || order.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	return &clone, nil
}

func (r *stubOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	var out []models.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (r *stubOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, stamps map[string]any) (bool, error) {
	order, ok := r.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (r *stubOrderRepo) FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error) {
	var out []models.Order
	for _, order := range r.orders {
		if order.Status == enums.OrderStatusPending && order.CreatedAt.Before(olderThan) {
			out = append(out, *order)
		}
	}
	return out, nil
}

// stubCartStore embeds the interface so only the methods order placement
// touches need bodies.
type stubCartStore struct {
	cart.CartRepository
	record       *models.CartRecord
	itemsCleared bool
	converted    bool
}

func (s *stubCartStore) WithTx(tx *gorm.DB) cart.CartRepository { return s }

func (s *stubCartStore) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	if s.record == nil || s.record.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.record, nil
}

func (s *stubCartStore) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	s.itemsCleared = true
	return nil
}

func (s *stubCartStore) MarkConverted(ctx context.Context, cartID uuid.UUID) error {
	s.converted = true
	return nil
}

type stubCatalog struct {
	products map[uuid.UUID]models.Product
}

func (s *stubCatalog) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if product, ok := s.products[id]; ok && product.IsActive {
			out = append(out, product)
		}
	}
	return out, nil
}

type stubProcessor struct {
	approve bool
	reason  string
	charges []payments.ChargeInput
}

func (s *stubProcessor) Charge(ctx context.Context, input payments.ChargeInput) (*payments.Outcome, error) {
	s.charges = append(s.charges, input)
	if !s.approve {
		return &payments.Outcome{Approved: false, DeclineReason: s.reason}, nil
	}
	return &payments.Outcome{Approved: true, Reference: "pi_test_123"}, nil
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func testAddress() types.Address {
	return types.Address{
		FullName:   "Nora Vidal",
		Email:      "nora.vidal@example.fr",
		Phone:      "+33 4 78 00 00 00",
		Line1:      "12 Rue des Jouets",
		City:       "Lyon",
		PostalCode: "69001",
		Country:    "FR",
	}
}

func placeInput() PlaceOrderInput {
	return PlaceOrderInput{
		ShippingMethod: enums.ShippingMethodStandard,
		Address:        testAddress(),
		PaymentMethod:  enums.PaymentMethodCard,
		PaymentToken:   "pm_card_visa",
	}
}

type fixture struct {
	svc       Service
	repo      *stubOrderRepo
	carts     *stubCartStore
	processor *stubProcessor
	emitter   *stubEmitter
}

func newFixture(t *testing.T, products map[uuid.UUID]models.Product, record *models.CartRecord) *fixture {
	t.Helper()

	repo := newStubOrderRepo()
	carts := &stubCartStore{record: record}
	processor := &stubProcessor{approve: true}
	emitter := &stubEmitter{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	svc, err := NewService(repo, carts, &stubCatalog{products: products}, stubTxRunner{}, processor, emitter, nil, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, repo: repo, carts: carts, processor: processor, emitter: emitter}
}

func cartWith(userID uuid.UUID, items ...models.CartItem) *models.CartRecord {
	return &models.CartRecord{
		ID:     uuid.New(),
		UserID: userID,
		Status: enums.CartStatusActive,
		Items:  items,
	}
}

func TestPlaceOrderRecomputesTotalsServerSide(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	products := map[uuid.UUID]models.Product{
		productID: {
			ID:       productID,
			Name:     "Wooden Train Set",
			Price:    decimal.RequireFromString("49.95"),
			IsActive: true,
		},
	}
	record := cartWith(userID, models.CartItem{ProductID: productID, Quantity: 1})
	f := newFixture(t, products, record)

	dto, err := f.svc.PlaceOrder(context.Background(), userID, placeInput())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if got := dto.Subtotal.StringFixed(2); got != "49.95" {
		t.Errorf("subtotal = %s, want 49.95", got)
	}
	if got := dto.ShippingCost.StringFixed(2); got != "5.99" {
		t.Errorf("shipping = %s, want 5.99", got)
	}
	if got := dto.Total.StringFixed(2); got != "55.94" {
		t.Errorf("total = %s, want 55.94", got)
	}
	if dto.Status != enums.OrderStatusPending {
		t.Errorf("status = %s, want pending", dto.Status)
	}
	if dto.PaymentRef != "pi_test_123" {
		t.Errorf("payment ref = %q, want pi_test_123", dto.PaymentRef)
	}
	if len(dto.Items) != 1 || dto.Items[0].Name != "Wooden Train Set" {
		t.Fatalf("expected one frozen line item, got %+v", dto.Items)
	}

	if len(f.processor.charges) != 1 {
		t.Fatalf("expected one charge, got %d", len(f.processor.charges))
	}
	if got := f.processor.charges[0].Amount.StringFixed(2); got != "55.94" {
		t.Errorf("charged amount = %s, want 55.94", got)
	}

	if _, ok := f.repo.orders[dto.ID]; !ok {
		t.Error("order row was not persisted")
	}
	if !f.carts.itemsCleared || !f.carts.converted {
		t.Error("cart was not cleared and converted")
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.OutboxEventOrderCreated {
		t.Fatalf("expected a single order.created event, got %+v", f.emitter.events)
	}
}

func TestPlaceOrderRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	f := newFixture(t, nil, cartWith(userID))

	_, err := f.svc.PlaceOrder(context.Background(), userID, placeInput())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeEmptyCart {
		t.Fatalf("expected empty cart error, got %v", err)
	}
	if len(f.processor.charges) != 0 {
		t.Error("payment should not be attempted for an empty cart")
	}
	if len(f.repo.orders) != 0 {
		t.Error("no order row should exist")
	}
}

func TestPlaceOrderDeclinedPaymentLeavesNoOrder(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	products := map[uuid.UUID]models.Product{
		productID: {ID: productID, Name: "Plush Bear", Price: decimal.RequireFromString("19.99"), IsActive: true},
	}
	record := cartWith(userID, models.CartItem{ProductID: productID, Quantity: 2})
	f := newFixture(t, products, record)
	f.processor.approve = false
	f.processor.reason = "insufficient funds"

	_, err := f.svc.PlaceOrder(context.Background(), userID, placeInput())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodePaymentFailed {
		t.Fatalf("expected payment failed error, got %v", err)
	}
	if len(f.repo.orders) != 0 {
		t.Error("declined payment must not leave an order row")
	}
	if f.carts.itemsCleared || f.carts.converted {
		t.Error("declined payment must leave the cart untouched")
	}
	if len(f.emitter.events) != 0 {
		t.Error("declined payment must not emit events")
	}
}

func TestPlaceOrderPersistFailureLeavesCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	products := map[uuid.UUID]models.Product{
		productID: {ID: productID, Name: "Kite", Price: decimal.RequireFromString("12.50"), IsActive: true},
	}
	record := cartWith(userID, models.CartItem{ProductID: productID, Quantity: 1})
	f := newFixture(t, products, record)
	f.repo.failCreate = true

	_, err := f.svc.PlaceOrder(context.Background(), userID, placeInput())
	if err == nil {
		t.Fatal("expected persist failure")
	}
	if f.carts.itemsCleared || f.carts.converted {
		t.Error("failed persist must not clear the cart")
	}
	if len(f.emitter.events) != 0 {
		t.Error("failed persist must not emit events")
	}
}

func TestPlaceOrderRejectsInvalidShippingMethod(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	f := newFixture(t, nil, nil)

	input := placeInput()
	input.ShippingMethod = enums.ShippingMethod("drone")
	_, err := f.svc.PlaceOrder(context.Background(), userID, input)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPlaceOrderVanishedProduct(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	record := cartWith(userID, models.CartItem{ProductID: productID, Quantity: 1})
	f := newFixture(t, nil, record)

	_, err := f.svc.PlaceOrder(context.Background(), userID, placeInput())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing product, got %v", err)
	}
	if len(f.processor.charges) != 0 {
		t.Error("payment should not be attempted when a product is gone")
	}
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	f := newFixture(t, nil, nil)
	orderID := uuid.New()
	f.repo.orders[orderID] = &models.Order{ID: orderID, UserID: userID, Status: enums.OrderStatusPending}

	dto, err := f.svc.UpdateStatus(context.Background(), orderID, enums.OrderStatusProcessing)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if dto.Status != enums.OrderStatusProcessing {
		t.Errorf("status = %s, want processing", dto.Status)
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.OutboxEventOrderStatusChanged {
		t.Fatalf("expected order.status_changed event, got %+v", f.emitter.events)
	}

	// pending is behind us now, so a jump back is a conflict
	_, err = f.svc.UpdateStatus(context.Background(), orderID, enums.OrderStatusProcessing)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelRejectedAfterShipment(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	f := newFixture(t, nil, nil)
	orderID := uuid.New()
	f.repo.orders[orderID] = &models.Order{ID: orderID, UserID: userID, Status: enums.OrderStatusShipped}

	_, err := f.svc.Cancel(context.Background(), userID, orderID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict cancelling a shipped order, got %v", err)
	}
}

func TestCancelRejectedWhileProcessing(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	f := newFixture(t, nil, nil)
	orderID := uuid.New()
	f.repo.orders[orderID] = &models.Order{ID: orderID, UserID: userID, Status: enums.OrderStatusProcessing}

	_, err := f.svc.Cancel(context.Background(), userID, orderID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict cancelling a processing order, got %v", err)
	}
}

func TestUpdateStatusCancelsProcessingOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	orderID := uuid.New()
	f.repo.orders[orderID] = &models.Order{ID: orderID, UserID: uuid.New(), Status: enums.OrderStatusProcessing}

	dto, err := f.svc.UpdateStatus(context.Background(), orderID, enums.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if dto.Status != enums.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled", dto.Status)
	}
}

func TestCancelScopedToOwner(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	orderID := uuid.New()
	f.repo.orders[orderID] = &models.Order{ID: orderID, UserID: uuid.New(), Status: enums.OrderStatusPending}

	_, err := f.svc.Cancel(context.Background(), uuid.New(), orderID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for another user's order, got %v", err)
	}
}

func TestExpireStalePendingCancelsBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	old := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 3; i++ {
		id := uuid.New()
		f.repo.orders[id] = &models.Order{ID: id, UserID: uuid.New(), Status: enums.OrderStatusPending, CreatedAt: old}
	}
	freshID := uuid.New()
	f.repo.orders[freshID] = &models.Order{ID: freshID, UserID: uuid.New(), Status: enums.OrderStatusPending, CreatedAt: time.Now()}

	cancelled, err := f.svc.ExpireStalePending(context.Background(), time.Now().Add(-24*time.Hour), 100)
	if err != nil {
		t.Fatalf("ExpireStalePending: %v", err)
	}
	if cancelled != 3 {
		t.Errorf("cancelled = %d, want 3", cancelled)
	}
	if f.repo.orders[freshID].Status != enums.OrderStatusPending {
		t.Error("fresh pending order must not be expired")
	}
}
