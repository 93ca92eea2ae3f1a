package checkout

import (
	"errors"

	"github.com/angelmondragon/pos-backend/internal/checkout/stock"
)

// Sentinel causes carried by the typed errors Checkout returns. Match them with errors.Is.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidLine          = errors.New("invalid cart line")
	ErrInvalidDiscount      = errors.New("discount percentage must be between 0 and 100")
	ErrNegativeTotal        = errors.New("sale total cannot be negative")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInsufficientPayment  = errors.New("amount tendered is less than the total")
	ErrTotalsMismatch       = errors.New("submitted totals do not match")
	ErrPersistence          = errors.New("sale could not be persisted")

	ErrInsufficientStock = stock.ErrInsufficientStock
	ErrProductNotFound   = stock.ErrProductNotFound
)

// failureReason maps an error to the metrics label it is counted under.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInvalidLine), errors.Is(err, ErrInvalidDiscount), errors.Is(err, ErrNegativeTotal):
		return "invalid_cart"
	case errors.Is(err, ErrInvalidPaymentMethod):
		return "invalid_payment_method"
	case errors.Is(err, ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, ErrTotalsMismatch):
		return "totals_mismatch"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
