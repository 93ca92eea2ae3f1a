package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

// saleTotal is the slice of a sale the trend needs.
type saleTotal struct {
	CreatedAt   time.Time
	TotalAmount decimal.Decimal
}

type productRevenue struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int64
	Revenue   decimal.Decimal
}

// Repository runs the dashboard aggregates. Queries stay portable across
// Postgres and sqlite; day bucketing happens in Go.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// scope restricts a sales query to one operator when operatorID is set.
func scope(query *gorm.DB, column string, operatorID *uuid.UUID) *gorm.DB {
	if operatorID == nil {
		return query
	}
	return query.Where(column+" = ?", *operatorID)
}

func (r *Repository) SaleTotals(ctx context.Context, from, to time.Time, operatorID *uuid.UUID) ([]saleTotal, error) {
	var rows []saleTotal
	query := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("created_at", "total_amount").
		Where("created_at >= ? AND created_at < ?", from, to)
	if err := scope(query, "operator_id", operatorID).Order("created_at ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) TopProducts(ctx context.Context, from, to time.Time, operatorID *uuid.UUID, limit int) ([]productRevenue, error) {
	var rows []productRevenue
	query := r.db.WithContext(ctx).
		Table("sale_items AS si").
		Select("si.product_id AS product_id, MAX(si.product_name) AS name, SUM(si.quantity) AS quantity, SUM(si.subtotal) AS revenue").
		Joins("JOIN sales AS s ON s.id = si.sale_id").
		Where("s.created_at >= ? AND s.created_at < ?", from, to)
	err := scope(query, "s.operator_id", operatorID).
		Group("si.product_id").
		Order("revenue DESC").
		Order("si.product_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error
	return n, err
}

// CountLowStock counts active products at or below the threshold.
func (r *Repository) CountLowStock(ctx context.Context, threshold int) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_active = ? AND stock_quantity <= ?", true, threshold).
		Count(&n).Error
	return n, err
}
