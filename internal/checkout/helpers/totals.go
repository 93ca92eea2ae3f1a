package helpers

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/money"
)

// Mismatch records a client-supplied amount that disagrees with the server.
type Mismatch struct {
	Field     string          `json:"field"`
	Submitted decimal.Decimal `json:"submitted"`
	Computed  decimal.Decimal `json:"computed"`
}

// Claimed holds the amounts a terminal says it computed. Nil fields are not checked.
type Claimed struct {
	Subtotal       *decimal.Decimal
	DiscountAmount *decimal.Decimal
	TaxAmount      *decimal.Decimal
	TotalAmount    *decimal.Decimal
}

// CompareTotals returns every claimed amount that differs from the computed
// summary by more than tol, in a stable field order.
func CompareTotals(claimed Claimed, computed money.Summary, tol decimal.Decimal) []Mismatch {
	var out []Mismatch
	check := func(field string, submitted *decimal.Decimal, actual decimal.Decimal) {
		if submitted == nil || money.WithinTolerance(*submitted, actual, tol) {
			return
		}
		out = append(out, Mismatch{Field: field, Submitted: *submitted, Computed: actual})
	}
	check("subtotal", claimed.Subtotal, computed.Subtotal)
	check("discountAmount", claimed.DiscountAmount, computed.DiscountAmount)
	check("taxAmount", claimed.TaxAmount, computed.Tax)
	check("totalAmount", claimed.TotalAmount, computed.Total)
	return out
}
