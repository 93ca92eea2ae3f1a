package sales

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
)

// Repository persists and reads the append-only sales ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sale *models.Sale) (*models.Sale, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Sale, int64, error)
}

// ListFilter narrows sale listings. A nil OperatorID lists every operator.
type ListFilter struct {
	OperatorID *uuid.UUID
}
