package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
)

// Viewer identifies who is reading the sales history.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// SeesAll reports whether the viewer may read other operators' sales.
func (v Viewer) SeesAll() bool {
	return v.Role == enums.UserRoleAdmin || v.Role == enums.UserRoleManager
}

// Service exposes read access to completed sales. Sales are written only by checkout.
type Service interface {
	Get(ctx context.Context, viewer Viewer, saleID uuid.UUID) (*SaleDTO, error)
	List(ctx context.Context, viewer Viewer, params pagination.Params) (*SaleList, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	return &service{repo: repo}, nil
}

// Get returns a sale. Cashiers only see their own; anything else reads as not found.
func (s *service) Get(ctx context.Context, viewer Viewer, saleID uuid.UUID) (*SaleDTO, error) {
	if viewer.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator required")
	}
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	if !viewer.SeesAll() && sale.OperatorID != viewer.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	return NewSaleDTO(sale), nil
}

// List pages through sales newest first. Cashiers are scoped to their own sales.
func (s *service) List(ctx context.Context, viewer Viewer, params pagination.Params) (*SaleList, error) {
	if viewer.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator required")
	}
	params = params.Normalize()

	filter := ListFilter{}
	if !viewer.SeesAll() {
		id := viewer.UserID
		filter.OperatorID = &id
	}

	rows, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}

	out := &SaleList{
		Sales: make([]SaleDTO, 0, len(rows)),
		Page:  pagination.NewPage(params, len(rows), total),
	}
	for i := range rows {
		out.Sales = append(out.Sales, *NewSaleDTO(&rows[i]))
	}
	return out, nil
}
