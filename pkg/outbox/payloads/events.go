package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// SaleCompletedEvent is emitted once per committed checkout.
type SaleCompletedEvent struct {
	SaleID         uuid.UUID           `json:"saleId"`
	OperatorID     uuid.UUID           `json:"operatorId"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
	TaxAmount      decimal.Decimal     `json:"taxAmount"`
	TotalAmount    decimal.Decimal     `json:"totalAmount"`
	PaymentMethod  enums.PaymentMethod `json:"paymentMethod"`
	ItemCount      int                 `json:"itemCount"`
	Lines          []SaleLine          `json:"lines"`
	CompletedAt    time.Time           `json:"completedAt"`
}

// SaleLine is the per-product slice of a completed sale.
type SaleLine struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// StockLowEvent signals that a checkout left a product at or below the
// low-stock threshold.
type StockLowEvent struct {
	ProductID uuid.UUID `json:"productId"`
	SaleID    uuid.UUID `json:"saleId"`
	Remaining int       `json:"remaining"`
	Threshold int       `json:"threshold"`
}
