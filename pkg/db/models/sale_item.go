package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SaleItem snapshots one cart line. Position preserves cart order.
type SaleItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SaleID         uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Product        *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	ProductName    string          `gorm:"column:product_name;not null"`
	Position       int             `gorm:"column:position;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *SaleItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
