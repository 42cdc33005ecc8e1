package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kt-tikotoys/storefront-backend/pkg/enums"
)

// CartRecord is a user-scoped cart. Only product references and quantities
// are persisted; prices are resolved from the catalog at read time.
type CartRecord struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_cart_records_user_active,where:status = 'active'"`
	Status      enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	Items       []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	ConvertedAt *time.Time       `gorm:"column:converted_at"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
