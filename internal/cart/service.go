package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kt-tikotoys/storefront-backend/pkg/db/models"
	pkgerrors "github.com/kt-tikotoys/storefront-backend/pkg/errors"
	"github.com/kt-tikotoys/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type snapshotStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartSnapshotKey(userID string) string
}

// Service exposes cart operations scoped to the authenticated user.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	ActiveRecord(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
}

type service struct {
	repo        CartRepository
	tx          txRunner
	products    productLoader
	snapshots   snapshotStore
	logg        *logger.Logger
	snapshotTTL time.Duration
	currency    string
}

// NewService builds a cart service backed by the provided stack. The snapshot
// store is optional; when nil the cart skips its Redis read-through cache.
func NewService(repo CartRepository, tx txRunner, products productLoader, snapshots snapshotStore, logg *logger.Logger, snapshotTTL time.Duration, currency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		products:    products,
		snapshots:   snapshots,
		logg:        logg,
		snapshotTTL: snapshotTTL,
		currency:    currency,
	}, nil
}

// Get resolves the active cart with live catalog prices.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	record, err := s.findOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildDTO(ctx, record)
}

// AddItem increments the line for the product, appending a new line when absent.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}
	if err := s.ensureProductExists(ctx, productID); err != nil {
		return nil, err
	}

	record, err := s.findOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		item, err := txRepo.FindItem(ctx, record.ID, productID)
		switch {
		case err == nil:
			item.Quantity += quantity
			return txRepo.SaveItem(ctx, item)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return txRepo.SaveItem(ctx, &models.CartItem{
				CartID:    record.ID,
				ProductID: productID,
				Quantity:  quantity,
			})
		default:
			return err
		}
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: add cart item")
	}

	return s.reload(ctx, userID)
}

// RemoveItem deletes the line for the product. Removing an absent product is
// a no-op, not an error.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	record, err := s.findOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, record.ID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: remove cart item")
	}

	return s.reload(ctx, userID)
}

// SetQuantity replaces the line quantity exactly; zero or less removes the line.
func (s *service) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	if err := s.ensureProductExists(ctx, productID); err != nil {
		return nil, err
	}

	record, err := s.findOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		item, err := txRepo.FindItem(ctx, record.ID, productID)
		switch {
		case err == nil:
			item.Quantity = quantity
			return txRepo.SaveItem(ctx, item)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return txRepo.SaveItem(ctx, &models.CartItem{
				CartID:    record.ID,
				ProductID: productID,
				Quantity:  quantity,
			})
		default:
			return err
		}
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: set cart quantity")
	}

	return s.reload(ctx, userID)
}

// Clear drops every line from the active cart.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	record, err := s.findOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItems(ctx, record.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart")
	}
	s.dropSnapshot(ctx, userID)
	return nil
}

// ActiveRecord exposes the raw cart row for order placement.
func (s *service) ActiveRecord(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	return s.findOrCreate(ctx, userID)
}

func (s *service) findOrCreate(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	record, err := s.repo.FindActiveByUser(ctx, userID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart")
	}

	created, err := s.repo.Create(ctx, &models.CartRecord{UserID: userID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create cart")
	}
	return created, nil
}

func (s *service) reload(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	record, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload cart")
	}
	dto, err := s.buildDTO(ctx, record)
	if err != nil {
		return nil, err
	}
	s.refreshSnapshot(ctx, userID, dto)
	return dto, nil
}

// buildDTO resolves product details live so catalog price edits show up in
// the cart view. Lines whose product vanished or went inactive are skipped.
func (s *service) buildDTO(ctx context.Context, record *models.CartRecord) (*CartDTO, error) {
	dto := &CartDTO{
		ID:       record.ID,
		Lines:    make([]CartLineDTO, 0, len(record.Items)),
		Subtotal: decimal.Zero,
		Currency: s.currency,
	}
	if len(record.Items) == 0 {
		return dto, nil
	}

	ids := make([]uuid.UUID, 0, len(record.Items))
	for _, item := range record.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: resolve cart products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, item := range record.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			continue
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		line := CartLineDTO{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  item.Quantity,
			LineTotal: lineTotal,
		}
		if len(product.Images) > 0 {
			image := product.Images[0]
			line.Image = &image
		}
		dto.Lines = append(dto.Lines, line)
		dto.Subtotal = dto.Subtotal.Add(lineTotal)
		dto.ItemCount += item.Quantity
	}
	return dto, nil
}

func (s *service) ensureProductExists(ctx context.Context, productID uuid.UUID) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// refreshSnapshot mirrors the cart into Redis for cheap reads. Snapshot
// failures are logged and swallowed; the database row stays authoritative.
func (s *service) refreshSnapshot(ctx context.Context, userID uuid.UUID, dto *CartDTO) {
	if s.snapshots == nil {
		return
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("marshal cart snapshot: %v", err))
		return
	}
	key := s.snapshots.CartSnapshotKey(userID.String())
	if err := s.snapshots.Set(ctx, key, payload, s.snapshotTTL); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("refresh cart snapshot: %v", err))
	}
}

func (s *service) dropSnapshot(ctx context.Context, userID uuid.UUID) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Del(ctx, s.snapshots.CartSnapshotKey(userID.String())); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("drop cart snapshot: %v", err))
	}
}
