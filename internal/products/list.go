package products

import "github.com/google/uuid"

// ListFilters describe the supported filter knobs for the catalog endpoint.
type ListFilters struct {
	Search     string
	CategoryID *uuid.UUID
	IsActive   *bool
	// LowStockOnly keeps products at or below the configured low-stock threshold.
	LowStockOnly bool
}
