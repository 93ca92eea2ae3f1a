package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// Sale is the append-only record of a completed checkout. Monetary columns are
// frozen at commit time and never recomputed from catalog prices.
type Sale struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OperatorID         uuid.UUID           `gorm:"column:operator_id;type:uuid;not null;index"`
	Subtotal           decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountPercentage decimal.Decimal     `gorm:"column:discount_percentage;type:numeric(5,2);not null"`
	DiscountAmount     decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TaxRate            decimal.Decimal     `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	TaxAmount          decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;type:varchar(16);not null"`
	AmountTendered     *decimal.Decimal    `gorm:"column:amount_tendered;type:numeric(12,2)"`
	ChangeDue          decimal.Decimal     `gorm:"column:change_due;type:numeric(12,2);not null"`
	Status             enums.SaleStatus    `gorm:"column:status;type:varchar(16);not null"`
	Items              []SaleItem          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Sale) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
