package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestRound2HalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2.345", "2.35"},
		{"2.344", "2.34"},
		{"-2.345", "-2.34"},
		{"-2.346", "-2.35"},
		{"0.005", "0.01"},
		{"10", "10"},
		{"1.999", "2"},
	}
	for _, tc := range cases {
		if got := Round2(d(tc.in)); !got.Equal(d(tc.want)) {
			t.Fatalf("Round2(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSummarizeRoundsAtEachStep(t *testing.T) {
	lines := []Line{{UnitPrice: d("100.00"), Quantity: 1}}

	got := Summarize(lines, d("7"), d("10"))

	if !got.Subtotal.Equal(d("100.00")) {
		t.Fatalf("subtotal = %s", got.Subtotal)
	}
	if !got.DiscountAmount.Equal(d("7.00")) {
		t.Fatalf("discount = %s", got.DiscountAmount)
	}
	if !got.Tax.Equal(d("9.30")) {
		t.Fatalf("tax = %s", got.Tax)
	}
	if !got.Total.Equal(d("102.30")) {
		t.Fatalf("total = %s", got.Total)
	}
	if got.ItemCount != 1 {
		t.Fatalf("item count = %d", got.ItemCount)
	}
}

func TestSummarizeIsConsistent(t *testing.T) {
	lines := []Line{
		{UnitPrice: d("3.33"), Quantity: 3, LineDiscount: d("0.10")},
		{UnitPrice: d("19.99"), Quantity: 2},
		{UnitPrice: d("0.07"), Quantity: 13, LineDiscount: d("0.01")},
	}
	for _, pct := range []string{"0", "3.5", "12.5", "100"} {
		got := Summarize(lines, d(pct), d("8.875"))
		want := Round2(got.Subtotal.Sub(got.DiscountAmount).Add(got.Tax))
		if !got.Total.Equal(want) {
			t.Fatalf("pct %s: total %s != %s", pct, got.Total, want)
		}
		if got.ItemCount != 18 {
			t.Fatalf("pct %s: item count %d", pct, got.ItemCount)
		}
	}
}

func TestSummarizeIsDeterministic(t *testing.T) {
	lines := []Line{{UnitPrice: d("1.15"), Quantity: 7, LineDiscount: d("0.33")}}
	first := Summarize(lines, d("15"), d("7.25"))
	for i := 0; i < 10; i++ {
		again := Summarize(lines, d("15"), d("7.25"))
		if !again.Total.Equal(first.Total) || !again.Tax.Equal(first.Tax) {
			t.Fatalf("summary changed between runs: %+v vs %+v", first, again)
		}
	}
}

func TestSubtotalDoesNotClampNegativeLines(t *testing.T) {
	lines := []Line{{UnitPrice: d("1.00"), Quantity: 1, LineDiscount: d("2.50")}}
	if got := Subtotal(lines); !got.Equal(d("-1.50")) {
		t.Fatalf("subtotal = %s, want -1.50", got)
	}
}

func TestEmptyCartSummarizesToZero(t *testing.T) {
	got := Summarize(nil, d("10"), d("10"))
	if !got.Total.IsZero() || got.ItemCount != 0 {
		t.Fatalf("expected zero summary, got %+v", got)
	}
}

func TestChange(t *testing.T) {
	if got := Change(d("50"), d("42.355")); !got.Equal(d("7.65")) {
		t.Fatalf("change = %s", got)
	}
	if got := Change(d("10"), d("12.5")); !got.Equal(d("-2.5")) {
		t.Fatalf("underpaid change = %s", got)
	}
}

func TestHasAtMostCents(t *testing.T) {
	if !HasAtMostCents(d("12.30")) {
		t.Fatal("12.30 should be accepted")
	}
	if HasAtMostCents(d("12.305")) {
		t.Fatal("12.305 should be rejected")
	}
}

func TestWithinTolerance(t *testing.T) {
	if !WithinTolerance(d("10.00"), d("10.01"), d("0.01")) {
		t.Fatal("expected one cent to be tolerated")
	}
	if WithinTolerance(d("10.00"), d("10.02"), d("0.01")) {
		t.Fatal("expected two cents to be rejected")
	}
}
