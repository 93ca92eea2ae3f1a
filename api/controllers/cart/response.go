package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/angelmondragon/pos-backend/internal/cart"
)

type cartResponse struct {
	Items              []cartItemResponse `json:"items"`
	DiscountPercentage decimal.Decimal    `json:"discountPercentage"`
	Subtotal           decimal.Decimal    `json:"subtotal"`
	DiscountAmount     decimal.Decimal    `json:"discountAmount"`
	TaxRate            decimal.Decimal    `json:"taxRate"`
	TaxAmount          decimal.Decimal    `json:"taxAmount"`
	TotalAmount        decimal.Decimal    `json:"totalAmount"`
	ItemCount          int                `json:"itemCount"`
	UpdatedAt          *time.Time         `json:"updatedAt,omitempty"`
}

type cartItemResponse struct {
	ProductID      uuid.UUID       `json:"productId"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Quantity       int             `json:"quantity"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

func newCartResponse(view *cartsvc.View) cartResponse {
	items := make([]cartItemResponse, 0, len(view.Cart.Items))
	for _, item := range view.Cart.Items {
		items = append(items, cartItemResponse{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPrice:      item.UnitPrice,
			Quantity:       item.Quantity,
			DiscountAmount: item.LineDiscount,
			Subtotal:       item.Subtotal(),
		})
	}

	resp := cartResponse{
		Items:              items,
		DiscountPercentage: view.Cart.DiscountPercentage,
		Subtotal:           view.Summary.Subtotal,
		DiscountAmount:     view.Summary.DiscountAmount,
		TaxRate:            view.TaxRate,
		TaxAmount:          view.Summary.Tax,
		TotalAmount:        view.Summary.Total,
		ItemCount:          view.Summary.ItemCount,
	}
	if !view.Cart.UpdatedAt.IsZero() {
		updated := view.Cart.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
