package enums

import "slices"

// SaleStatus tracks the lifecycle of a persisted sale. Checkout only writes
// COMPLETED.
type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "COMPLETED"
	SaleStatusPending   SaleStatus = "PENDING"
	SaleStatusRefunded  SaleStatus = "REFUNDED"
)

var saleStatuses = []SaleStatus{SaleStatusCompleted, SaleStatusPending, SaleStatusRefunded}

func (s SaleStatus) String() string { return string(s) }

func (s SaleStatus) IsValid() bool { return slices.Contains(saleStatuses, s) }

func ParseSaleStatus(value string) (SaleStatus, error) {
	return parse(saleStatuses, value, "sale status", nil)
}
