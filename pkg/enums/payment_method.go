package enums

import (
	"slices"
	"strings"
)

// PaymentMethod describes how the customer settled a sale at the terminal.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "CASH"
	PaymentMethodCard    PaymentMethod = "CARD"
	PaymentMethodDigital PaymentMethod = "DIGITAL"
)

var paymentMethods = []PaymentMethod{PaymentMethodCash, PaymentMethodCard, PaymentMethodDigital}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return slices.Contains(paymentMethods, p) }

// RequiresTender is true for methods where the customer hands over an amount
// that may exceed the total and produce change.
func (p PaymentMethod) RequiresTender() bool {
	return p == PaymentMethodCash
}

// ParsePaymentMethod is case-insensitive; terminals may send "cash".
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(paymentMethods, value, "payment method", func(s string) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})
}
