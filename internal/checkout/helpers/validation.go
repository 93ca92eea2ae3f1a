package helpers

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

// LineError pinpoints the first cart line that cannot be sold.
type LineError struct {
	Index     int
	ProductID uuid.UUID
	Reason    string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Index, e.Reason)
}

// Details renders the error for API payloads.
func (e *LineError) Details() map[string]any {
	return map[string]any{
		"line":      e.Index,
		"productId": e.ProductID.String(),
		"reason":    e.Reason,
	}
}

// ValidateLines checks every line is sellable: a product reference, quantity
// of at least one, and cent-precision non-negative price and discount.
func ValidateLines(items []cart.Item) *LineError {
	for i, item := range items {
		fail := func(reason string) *LineError {
			return &LineError{Index: i, ProductID: item.ProductID, Reason: reason}
		}
		switch {
		case item.ProductID == uuid.Nil:
			return fail("product id is required")
		case item.Quantity < 1:
			return fail("quantity must be at least 1")
		case item.UnitPrice.IsNegative():
			return fail("unit price cannot be negative")
		case !money.HasAtMostCents(item.UnitPrice):
			return fail("unit price must have at most 2 decimal places")
		case item.LineDiscount.IsNegative():
			return fail("discount cannot be negative")
		case !money.HasAtMostCents(item.LineDiscount):
			return fail("discount must have at most 2 decimal places")
		}
	}
	return nil
}

// ValidateDiscountPercentage enforces the [0, 100] cart discount range.
func ValidateDiscountPercentage(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(decimal.NewFromInt(100))
}
