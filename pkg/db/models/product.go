package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable catalog entry. StockQuantity is the shared counter the
// checkout stock guard decrements.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name          string          `gorm:"column:name;not null"`
	Description   *string         `gorm:"column:description"`
	SKU           string          `gorm:"column:sku;not null;uniqueIndex"`
	Barcode       *string         `gorm:"column:barcode"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Cost          decimal.Decimal `gorm:"column:cost;type:numeric(12,2);not null"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0;check:stock_quantity >= 0"`
	ImageURL      *string         `gorm:"column:image_url"`
	CategoryID    *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	Category      *Category       `gorm:"foreignKey:CategoryID"`
	IsActive      bool            `gorm:"column:is_active;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
