package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kt-tikotoys/storefront-backend/internal/cart"
	"github.com/kt-tikotoys/storefront-backend/internal/checkout"
	"github.com/kt-tikotoys/storefront-backend/internal/payments"
	"github.com/kt-tikotoys/storefront-backend/pkg/db/models"
	"github.com/kt-tikotoys/storefront-backend/pkg/enums"
	pkgerrors "github.com/kt-tikotoys/storefront-backend/pkg/errors"
	"github.com/kt-tikotoys/storefront-backend/pkg/logger"
	"github.com/kt-tikotoys/storefront-backend/pkg/outbox"
	"github.com/kt-tikotoys/storefront-backend/pkg/outbox/payloads"
	"github.com/kt-tikotoys/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cartCache interface {
	Del(ctx context.Context, keys ...string) error
	CartSnapshotKey(userID string) string
}

// Service materializes orders out of carts and drives their lifecycle.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, userID uuid.UUID, rawCursor string, limit int) (*OrderListResult, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*OrderDTO, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ExpireStalePending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type service struct {
	repo      Repository
	carts     cart.CartRepository
	products  productLoader
	tx        txRunner
	processor payments.Processor
	events    eventEmitter
	cache     cartCache
	logg      *logger.Logger
}

// NewService wires the order materializer. The cache is optional; every other
// dependency is required.
func NewService(
	repo Repository,
	carts cart.CartRepository,
	products productLoader,
	tx txRunner,
	processor payments.Processor,
	events eventEmitter,
	cache cartCache,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("payment processor is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		repo:      repo,
		carts:     carts,
		products:  products,
		tx:        tx,
		processor: processor,
		events:    events,
		cache:     cache,
		logg:      logg,
	}, nil
}

// PlaceOrder charges the payment and, on approval, persists the order with
// frozen line items, converts the cart and queues the order.created event in
// a single transaction. A declined payment leaves no order row behind.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*OrderDTO, error) {
	if !input.ShippingMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping method")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if err := input.Address.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}

	record, lines, err := s.loadCheckoutLines(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Totals are always recomputed here from live catalog prices. Whatever
	// the client displayed at checkout is advisory only.
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal)
	}
	shipping, err := checkout.ShippingCost(subtotal, input.ShippingMethod)
	if err != nil {
		return nil, err
	}
	total := checkout.Total(subtotal, shipping)

	orderID := uuid.New()
	currency := enums.CurrencyEUR

	outcome, err := s.processor.Charge(ctx, payments.ChargeInput{
		UserID:       userID,
		OrderID:      orderID,
		Amount:       total,
		Currency:     currency,
		Method:       input.PaymentMethod,
		PaymentToken: input.PaymentToken,
		Description:  fmt.Sprintf("order %s", orderID),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider unavailable")
	}
	if !outcome.Approved {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"user_id": userID.String(),
			"reason":  outcome.DeclineReason,
		}), "payment declined")
		return nil, pkgerrors.New(pkgerrors.CodePaymentFailed, "payment was declined")
	}

	order := &models.Order{
		ID:              orderID,
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		ShippingMethod:  input.ShippingMethod,
		ShippingAddress: input.Address,
		Currency:        currency,
		Subtotal:        subtotal,
		ShippingCost:    shipping,
		Total:           total,
		PaymentRef:      outcome.Reference,
	}
	for i := range lines {
		lines[i].OrderID = orderID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		carts := s.carts.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		if err := repo.CreateLineItems(ctx, lines); err != nil {
			return err
		}
		if err := carts.DeleteItems(ctx, record.ID); err != nil {
			return err
		}
		if err := carts.MarkConverted(ctx, record.ID); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventOrderCreated,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderCreatedEvent{
				OrderID:        orderID,
				UserID:         userID,
				ShippingMethod: input.ShippingMethod,
				Currency:       currency,
				Subtotal:       subtotal,
				ShippingCost:   shipping,
				Total:          total,
				ItemCount:      len(lines),
				PlacedAt:       time.Now(),
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to persist order")
	}

	s.dropCartSnapshot(ctx, userID)
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order placed")

	order.Items = lines
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByIDAndUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, rawCursor string, limit int) (*OrderListResult, error) {
	cursor, err := pagination.ParseCursor(rawCursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit = pagination.NormalizeLimit(limit)

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list orders")
	}

	result := &OrderListResult{Orders: make([]OrderDTO, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i := range rows {
		result.Orders = append(result.Orders, NewOrderDTO(&rows[i]))
	}
	if hasMore {
		last := rows[len(rows)-1]
		next := pagination.EncodeCursor(last.CreatedAt, last.ID)
		result.NextCursor = &next
	}
	return result, nil
}

// UpdateStatus advances the order along the forward-only lifecycle. Illegal
// transitions, including any cancellation after shipment, are rejected.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*OrderDTO, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	return s.transition(ctx, order, target)
}

// Cancel lets the owning customer cancel an order that has not started
// fulfilment. Admins can still cancel processing orders via UpdateStatus.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByIDAndUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %q can no longer be cancelled by the customer", order.Status))
	}
	return s.transition(ctx, order, enums.OrderStatusCancelled)
}

// ExpireStalePending cancels pending orders older than the cutoff. Individual
// failures are collected so one stuck order does not stall the batch.
func (s *service) ExpireStalePending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := s.repo.FindStalePending(ctx, olderThan, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to scan pending orders")
	}

	var errs error
	cancelled := 0
	for i := range stale {
		if _, err := s.transition(ctx, &stale[i], enums.OrderStatusCancelled); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", stale[i].ID, err))
			continue
		}
		cancelled++
	}
	return cancelled, errs
}

func (s *service) transition(ctx context.Context, order *models.Order, target enums.OrderStatus) (*OrderDTO, error) {
	from := order.Status
	if !from.CanTransitionTo(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", from, target))
	}

	now := time.Now()
	stamps := map[string]any{}
	switch target {
	case enums.OrderStatusCancelled:
		stamps["cancelled_at"] = now
	case enums.OrderStatusDelivered:
		stamps["delivered_at"] = now
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, from, target, stamps)
		if err != nil {
			return err
		}
		if !moved {
			// Another writer got there first; the loaded status is stale.
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", from, target))
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventOrderStatusChanged,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				FromStatus: from,
				ToStatus:   target,
				ChangedAt:  now,
			},
			Version: 1,
		})
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update order status")
	}

	order.Status = target
	switch target {
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"from":     from.String(),
		"to":       target.String(),
	}), "order status changed")

	dto := NewOrderDTO(order)
	return &dto, nil
}

// loadCheckoutLines resolves the active cart into frozen order lines priced
// from the current catalog. An absent or empty cart is a checkout error.
func (s *service) loadCheckoutLines(ctx context.Context, userID uuid.UUID) (*models.CartRecord, []models.OrderLineItem, error) {
	record, err := s.carts.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	if len(record.Items) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(record.Items))
	for _, item := range record.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to resolve cart products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	lines := make([]models.OrderLineItem, 0, len(record.Items))
	for _, item := range record.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			// The product went away between carting and checkout.
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %s is no longer available", item.ProductID))
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		lines = append(lines, models.OrderLineItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  item.Quantity,
			LineTotal: product.Price.Mul(qty),
		})
	}
	return record, lines, nil
}

func (s *service) dropCartSnapshot(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	key := s.cache.CartSnapshotKey(userID.String())
	if err := s.cache.Del(ctx, key); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "key", key), "failed to drop cart snapshot")
	}
}
