package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
)

// SaleDTO is the receipt shape returned to terminals.
type SaleDTO struct {
	ID                 uuid.UUID           `json:"id"`
	OperatorID         uuid.UUID           `json:"userId"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	DiscountPercentage decimal.Decimal     `json:"discountPercentage"`
	DiscountAmount     decimal.Decimal     `json:"discountAmount"`
	TaxRate            decimal.Decimal     `json:"taxRate"`
	TaxAmount          decimal.Decimal     `json:"taxAmount"`
	TotalAmount        decimal.Decimal     `json:"totalAmount"`
	PaymentMethod      enums.PaymentMethod `json:"paymentMethod"`
	AmountTendered     *decimal.Decimal    `json:"amountTendered,omitempty"`
	ChangeDue          decimal.Decimal     `json:"change"`
	Status             enums.SaleStatus    `json:"status"`
	Items              []SaleItemDTO       `json:"items"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// SaleItemDTO is one frozen receipt line.
type SaleItemDTO struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"productId"`
	ProductName    string          `json:"productName"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

// SaleList wraps a page of sales.
type SaleList struct {
	Sales []SaleDTO       `json:"sales"`
	Page  pagination.Page `json:"page"`
}

// NewSaleDTO maps a persisted sale.
func NewSaleDTO(sale *models.Sale) *SaleDTO {
	dto := &SaleDTO{
		ID:                 sale.ID,
		OperatorID:         sale.OperatorID,
		Subtotal:           sale.Subtotal,
		DiscountPercentage: sale.DiscountPercentage,
		DiscountAmount:     sale.DiscountAmount,
		TaxRate:            sale.TaxRate,
		TaxAmount:          sale.TaxAmount,
		TotalAmount:        sale.TotalAmount,
		PaymentMethod:      sale.PaymentMethod,
		AmountTendered:     sale.AmountTendered,
		ChangeDue:          sale.ChangeDue,
		Status:             sale.Status,
		Items:              make([]SaleItemDTO, 0, len(sale.Items)),
		CreatedAt:          sale.CreatedAt,
	}
	for _, item := range sale.Items {
		dto.Items = append(dto.Items, SaleItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
			Subtotal:       item.Subtotal,
		})
	}
	return dto
}
