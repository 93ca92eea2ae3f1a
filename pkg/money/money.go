// Package money holds the checkout arithmetic. Every helper rounds its result
// to cents with round-half-up so a summary is reproducible from its inputs.
package money

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.RequireFromString("0.5")
)

// Line is the minimal view of a priced cart line.
type Line struct {
	UnitPrice    decimal.Decimal
	Quantity     int
	LineDiscount decimal.Decimal
}

// Summary is the derived money view of a cart.
type Summary struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
	ItemCount      int
}

// Round2 rounds to two decimal places, ties toward positive infinity
// (floor(v*100 + 0.5) / 100). Round2(2.345) is 2.35 and Round2(-2.345) is -2.34.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Shift(2).Add(half).Floor().Shift(-2)
}

// LineSubtotal is unitPrice*quantity - lineDiscount, unrounded.
func LineSubtotal(l Line) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Sub(l.LineDiscount)
}

// Subtotal sums every line subtotal. Lines are not validated or clamped; a
// discount larger than the line total yields a negative contribution.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineSubtotal(l))
	}
	return Round2(sum)
}

// DiscountAmount returns round2(subtotal * pct / 100). pct is not range checked.
func DiscountAmount(subtotal, pct decimal.Decimal) decimal.Decimal {
	return Round2(subtotal.Mul(pct).Div(hundred))
}

// Tax returns round2(taxable * rate / 100). Callers pass subtotal - discount.
func Tax(taxable, rate decimal.Decimal) decimal.Decimal {
	return Round2(taxable.Mul(rate).Div(hundred))
}

// Total returns round2(subtotal - discount + tax).
func Total(subtotal, discount, tax decimal.Decimal) decimal.Decimal {
	return Round2(subtotal.Sub(discount).Add(tax))
}

// Change returns round2(tendered - total). It is negative when underpaid.
func Change(tendered, total decimal.Decimal) decimal.Decimal {
	return Round2(tendered.Sub(total))
}

// Summarize applies subtotal, discount, tax and total in order, rounding at each step.
func Summarize(lines []Line, discountPct, taxRate decimal.Decimal) Summary {
	subtotal := Subtotal(lines)
	discount := DiscountAmount(subtotal, discountPct)
	tax := Tax(subtotal.Sub(discount), taxRate)

	count := 0
	for _, l := range lines {
		count += l.Quantity
	}

	return Summary{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Tax:            tax,
		Total:          Total(subtotal, discount, tax),
		ItemCount:      count,
	}
}

// HasAtMostCents reports whether v carries no more than two decimal places.
func HasAtMostCents(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(2))
}

// WithinTolerance reports whether |a-b| <= tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}
