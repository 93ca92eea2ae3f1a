package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/internal/sales"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

const (
	topProductsLimit = 5
	trendDays        = 7
)

type dashboardRepository interface {
	SaleTotals(ctx context.Context, from, to time.Time, operatorID *uuid.UUID) ([]saleTotal, error)
	TopProducts(ctx context.Context, from, to time.Time, operatorID *uuid.UUID, limit int) ([]productRevenue, error)
	CountProducts(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context, threshold int) (int64, error)
}

// Service builds the dashboard shown on the terminal home screen.
type Service interface {
	// Dashboard summarizes today's sales, the top products by revenue, catalog
	// health and a trailing seven-day trend. Cashiers see only their own sales.
	Dashboard(ctx context.Context, viewer sales.Viewer) (*Dashboard, error)
}

type ServiceParams struct {
	Repo              dashboardRepository
	Location          *time.Location
	LowStockThreshold int
	Now               func() time.Time
}

type service struct {
	repo      dashboardRepository
	loc       *time.Location
	threshold int
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("analytics repository required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, loc: loc, threshold: params.LowStockThreshold, now: now}, nil
}

func (s *service) Dashboard(ctx context.Context, viewer sales.Viewer) (*Dashboard, error) {
	if viewer.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator required")
	}
	var operatorID *uuid.UUID
	if !viewer.SeesAll() {
		id := viewer.UserID
		operatorID = &id
	}

	now := s.now().In(s.loc)
	days := dayStarts(now, trendDays)
	windowStart, today := days[0], days[len(days)-1]
	tomorrow := today.AddDate(0, 0, 1)

	totals, err := s.repo.SaleTotals(ctx, windowStart.UTC(), tomorrow.UTC(), operatorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales trend")
	}
	trend := bucketByDay(totals, days, s.loc)

	top, err := s.repo.TopProducts(ctx, today.UTC(), tomorrow.UTC(), operatorID, topProductsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load top products")
	}
	productCount, err := s.repo.CountProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	lowStock, err := s.repo.CountLowStock(ctx, s.threshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count low stock")
	}

	topProducts := make([]TopProduct, 0, len(top))
	for _, row := range top {
		topProducts = append(topProducts, TopProduct{
			ProductID: row.ProductID,
			Name:      row.Name,
			Quantity:  row.Quantity,
			Revenue:   money.Round2(row.Revenue),
		})
	}

	current := trend[len(trend)-1]
	return &Dashboard{
		TodaySummary: TodaySummary{
			TotalSales:       current.Sales,
			TransactionCount: current.Transactions,
			ProductCount:     productCount,
			LowStockCount:    lowStock,
		},
		TopProducts: topProducts,
		SalesTrend:  trend,
		GeneratedAt: now,
	}, nil
}

// dayStarts returns local midnights for the n days ending today, oldest first.
func dayStarts(now time.Time, n int) []time.Time {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = today.AddDate(0, 0, i-(n-1))
	}
	return out
}

func bucketByDay(rows []saleTotal, days []time.Time, loc *time.Location) []TrendPoint {
	index := make(map[string]int, len(days))
	points := make([]TrendPoint, len(days))
	for i, day := range days {
		key := day.Format(time.DateOnly)
		index[key] = i
		points[i] = TrendPoint{Date: key, Label: day.Format("Jan 2"), Sales: decimal.Zero}
	}
	for _, row := range rows {
		i, ok := index[row.CreatedAt.In(loc).Format(time.DateOnly)]
		if !ok {
			continue
		}
		points[i].Sales = points[i].Sales.Add(row.TotalAmount)
		points[i].Transactions++
	}
	for i := range points {
		points[i].Sales = money.Round2(points[i].Sales)
	}
	return points
}
