package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

// Service exposes catalog management operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, filters ListFilters) ([]ProductDTO, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name          string
	Description   *string
	SKU           string
	Barcode       *string
	Price         decimal.Decimal
	Cost          decimal.Decimal
	StockQuantity int
	ImageURL      *string
	CategoryID    *uuid.UUID
	IsActive      bool
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name          *string
	Description   *string
	SKU           *string
	Barcode       *string
	Price         *decimal.Decimal
	Cost          *decimal.Decimal
	StockQuantity *int
	ImageURL      *string
	CategoryID    *uuid.UUID
	IsActive      *bool
}

// CreateCategoryInput holds the payload to create a category.
type CreateCategoryInput struct {
	Name        string
	Description *string
}

type service struct {
	repo              *Repository
	dbClient          *db.Client
	lowStockThreshold int
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, dbClient *db.Client, lowStockThreshold int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient, lowStockThreshold: lowStockThreshold}, nil
}

// CreateProduct validates and inserts a product.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.SKU = strings.TrimSpace(input.SKU)
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.SKU == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if err := validateAmount("price", input.Price); err != nil {
		return nil, err
	}
	if err := validateAmount("cost", input.Cost); err != nil {
		return nil, err
	}
	if err := validateStock(input.StockQuantity); err != nil {
		return nil, err
	}

	var createdID uuid.UUID
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if err := ensureSKUAvailable(ctx, txRepo, input.SKU, uuid.Nil); err != nil {
			return err
		}
		if err := ensureCategory(ctx, txRepo, input.CategoryID); err != nil {
			return err
		}

		created, err := txRepo.CreateProduct(ctx, &models.Product{
			Name:          input.Name,
			Description:   input.Description,
			SKU:           input.SKU,
			Barcode:       input.Barcode,
			Price:         input.Price,
			Cost:          input.Cost,
			StockQuantity: input.StockQuantity,
			ImageURL:      input.ImageURL,
			CategoryID:    input.CategoryID,
			IsActive:      input.IsActive,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product with this sku already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		createdID = created.ID
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	return s.GetProduct(ctx, createdID)
}

// UpdateProduct applies the provided fields to an existing product.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.SKU != nil && strings.TrimSpace(*input.SKU) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if input.Price != nil {
		if err := validateAmount("price", *input.Price); err != nil {
			return nil, err
		}
	}
	if input.Cost != nil {
		if err := validateAmount("cost", *input.Cost); err != nil {
			return nil, err
		}
	}
	if input.StockQuantity != nil {
		if err := validateStock(*input.StockQuantity); err != nil {
			return nil, err
		}
	}

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product, err := txRepo.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		if input.SKU != nil && strings.TrimSpace(*input.SKU) != product.SKU {
			if err := ensureSKUAvailable(ctx, txRepo, strings.TrimSpace(*input.SKU), product.ID); err != nil {
				return err
			}
		}
		if err := ensureCategory(ctx, txRepo, input.CategoryID); err != nil {
			return err
		}

		applyUpdateToProduct(product, input)
		if _, err := txRepo.UpdateProduct(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product with this sku already exists")
			}
			return err
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	return s.GetProduct(ctx, productID)
}

// DeleteProduct removes a product that has never been sold. Sold products are
// referenced by immutable sale lines and must be deactivated instead.
func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	sold, err := s.repo.HasSales(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product sales")
	}
	if sold {
		return pkgerrors.New(pkgerrors.CodeConflict, "product has sales history; deactivate it instead")
	}

	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.GetDetail(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product detail")
	}
	return NewProductDTO(product, s.lowStockThreshold), nil
}

func (s *service) ListProducts(ctx context.Context, filters ListFilters) ([]ProductDTO, error) {
	rows, err := s.repo.List(ctx, filters, s.lowStockThreshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i], s.lowStockThreshold))
	}
	return out, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	created, err := s.repo.CreateCategory(ctx, &models.Category{Name: name, Description: input.Description})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return NewCategoryDTO(created), nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewCategoryDTO(&rows[i]))
	}
	return out, nil
}

func ensureSKUAvailable(ctx context.Context, repo *Repository, sku string, self uuid.UUID) error {
	existing, err := repo.FindBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sku")
	}
	if existing.ID != self {
		return pkgerrors.New(pkgerrors.CodeConflict, "product with this sku already exists")
	}
	return nil
}

func ensureCategory(ctx context.Context, repo *Repository, categoryID *uuid.UUID) error {
	if categoryID == nil {
		return nil
	}
	if _, err := repo.FindCategoryByID(ctx, *categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist").
				WithDetails(map[string]any{"categoryId": categoryID.String()})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return nil
}

func validateAmount(field string, value decimal.Decimal) error {
	if !value.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" must be positive").
			WithDetails(map[string]any{field: "must be greater than 0"})
	}
	if !money.HasAtMostCents(value) {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" must have at most 2 decimal places").
			WithDetails(map[string]any{field: "must have at most 2 decimal places"})
	}
	return nil
}

func validateStock(value int) error {
	if value < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative").
			WithDetails(map[string]any{"stockQuantity": "must be 0 or greater"})
	}
	return nil
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.SKU != nil {
		product.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.Barcode != nil {
		product.Barcode = input.Barcode
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Cost != nil {
		product.Cost = *input.Cost
	}
	if input.StockQuantity != nil {
		product.StockQuantity = *input.StockQuantity
	}
	if input.ImageURL != nil {
		product.ImageURL = input.ImageURL
	}
	if input.CategoryID != nil {
		product.CategoryID = input.CategoryID
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
}
