// Package stock guards the shared product stock counters. Every decrement is a
// single conditional UPDATE executed inside the caller's transaction, so stock
// can never go negative regardless of how many checkouts race for it.
package stock

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

var (
	// ErrProductNotFound is the cause when a requested product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is the cause when the remaining stock is below the requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Request asks for quantity units of a product.
type Request struct {
	ProductID uuid.UUID
	Quantity  int
}

// Level reports the stock left for a product after a successful decrement.
// Quantity is the merged amount taken from it.
type Level struct {
	ProductID uuid.UUID
	Quantity  int
	Remaining int
}

// Crossed reports whether this decrement moved the product from above
// threshold to at or below it.
func (l Level) Crossed(threshold int) bool {
	return l.Remaining <= threshold && l.Remaining+l.Quantity > threshold
}

// Decrement removes the requested quantities from stock. Requests for the same
// product are merged before any row is touched. The first failing product
// aborts the call; callers must roll back the surrounding transaction.
func Decrement(ctx context.Context, tx *gorm.DB, requests []Request) ([]Level, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock decrement requires a transaction")
	}
	merged, err := merge(requests)
	if err != nil {
		return nil, err
	}

	levels := make([]Level, 0, len(merged))
	now := time.Now().UTC()
	for _, req := range merged {
		result := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND stock_quantity >= ?", req.ProductID, req.Quantity).
			Updates(map[string]any{
				"stock_quantity": gorm.Expr("stock_quantity - ?", req.Quantity),
				"updated_at":     now,
			})
		if result.Error != nil {
			return nil, result.Error
		}

		var product models.Product
		err := tx.WithContext(ctx).
			Select("id", "stock_quantity").
			Where("id = ?", req.ProductID).
			Take(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrProductNotFound, "product not found").
					WithDetails(map[string]any{"productId": req.ProductID.String()})
			}
			return nil, err
		}

		if result.RowsAffected == 0 {
			return nil, pkgerrors.Wrap(pkgerrors.CodeOutOfStock, ErrInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"productId": req.ProductID.String(),
					"requested": req.Quantity,
					"available": product.StockQuantity,
				})
		}
		levels = append(levels, Level{ProductID: req.ProductID, Quantity: req.Quantity, Remaining: product.StockQuantity})
	}
	return levels, nil
}

// merge sums quantities per product and orders the result by product id so
// concurrent transactions always lock rows in the same order.
func merge(requests []Request) ([]Request, error) {
	totals := make(map[uuid.UUID]int, len(requests))
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"productId": req.ProductID.String(), "quantity": req.Quantity})
		}
		totals[req.ProductID] += req.Quantity
	}

	merged := make([]Request, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Request{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return bytes.Compare(merged[i].ProductID[:], merged[j].ProductID[:]) < 0
	})
	return merged, nil
}
