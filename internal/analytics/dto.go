package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dashboard is the terminal home screen payload.
type Dashboard struct {
	TodaySummary TodaySummary `json:"todaySummary"`
	TopProducts  []TopProduct `json:"topProducts"`
	SalesTrend   []TrendPoint `json:"salesTrend"`
	GeneratedAt  time.Time    `json:"generatedAt"`
}

type TodaySummary struct {
	TotalSales       decimal.Decimal `json:"totalSales"`
	TransactionCount int64           `json:"transactionCount"`
	ProductCount     int64           `json:"productCount"`
	LowStockCount    int64           `json:"lowStockCount"`
}

// TopProduct ranks a product by revenue over the day.
type TopProduct struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// TrendPoint is one calendar day of the trailing trend, oldest first.
type TrendPoint struct {
	Date         string          `json:"date"`
	Label        string          `json:"label"`
	Sales        decimal.Decimal `json:"sales"`
	Transactions int64           `json:"transactions"`
}
