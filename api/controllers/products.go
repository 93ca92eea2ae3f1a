package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	productsvc "github.com/angelmondragon/pos-backend/internal/products"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

// ProductsList returns the catalog filtered by the query string.
func ProductsList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		filters, err := parseProductFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := svc.ListProducts(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, products)
	}
}

// ProductGet returns one catalog entry.
func ProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// ProductCreate adds a product to the catalog.
func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// ProductUpdate applies a partial update to a product.
func ProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toUpdateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// ProductDelete removes a product that has never been sold.
func ProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func CategoriesList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, categories)
	}
}

func CategoryCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.CreateCategory(r.Context(), productsvc.CreateCategoryInput{
			Name:        validators.SanitizeString(payload.Name, 100),
			Description: payload.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

type createProductRequest struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Description   *string          `json:"description,omitempty"`
	SKU           string           `json:"sku" validate:"required,max=64"`
	Barcode       *string          `json:"barcode,omitempty"`
	Price         *decimal.Decimal `json:"price" validate:"required,money"`
	Cost          *decimal.Decimal `json:"cost,omitempty" validate:"omitempty,money"`
	StockQuantity int              `json:"stockQuantity" validate:"min=0"`
	ImageURL      *string          `json:"imageUrl,omitempty" validate:"omitempty,url"`
	CategoryID    *string          `json:"categoryId,omitempty"`
	IsActive      *bool            `json:"isActive,omitempty"`
}

type updateProductRequest struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string          `json:"description,omitempty"`
	SKU           *string          `json:"sku,omitempty" validate:"omitempty,min=1,max=64"`
	Barcode       *string          `json:"barcode,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty" validate:"omitempty,money"`
	Cost          *decimal.Decimal `json:"cost,omitempty" validate:"omitempty,money"`
	StockQuantity *int             `json:"stockQuantity,omitempty" validate:"omitempty,min=0"`
	ImageURL      *string          `json:"imageUrl,omitempty" validate:"omitempty,url"`
	CategoryID    *string          `json:"categoryId,omitempty"`
	IsActive      *bool            `json:"isActive,omitempty"`
}

type createCategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description,omitempty"`
}

func (r createProductRequest) toCreateInput() (productsvc.CreateProductInput, error) {
	categoryID, err := parseOptionalUUID(r.CategoryID, "categoryId")
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}

	cost := decimal.Zero
	if r.Cost != nil {
		cost = *r.Cost
	}
	isActive := true
	if r.IsActive != nil {
		isActive = *r.IsActive
	}

	return productsvc.CreateProductInput{
		Name:          strings.TrimSpace(r.Name),
		Description:   r.Description,
		SKU:           strings.TrimSpace(r.SKU),
		Barcode:       r.Barcode,
		Price:         *r.Price,
		Cost:          cost,
		StockQuantity: r.StockQuantity,
		ImageURL:      r.ImageURL,
		CategoryID:    categoryID,
		IsActive:      isActive,
	}, nil
}

func (r updateProductRequest) toUpdateInput() (productsvc.UpdateProductInput, error) {
	categoryID, err := parseOptionalUUID(r.CategoryID, "categoryId")
	if err != nil {
		return productsvc.UpdateProductInput{}, err
	}

	input := productsvc.UpdateProductInput{
		Name:          r.Name,
		Description:   r.Description,
		SKU:           r.SKU,
		Barcode:       r.Barcode,
		Price:         r.Price,
		Cost:          r.Cost,
		StockQuantity: r.StockQuantity,
		ImageURL:      r.ImageURL,
		CategoryID:    categoryID,
		IsActive:      r.IsActive,
	}
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
	}
	if input.SKU != nil {
		trimmed := strings.TrimSpace(*input.SKU)
		input.SKU = &trimmed
	}
	return input, nil
}

func parseProductFilters(r *http.Request) (productsvc.ListFilters, error) {
	filters := productsvc.ListFilters{
		Search: validators.SanitizeString(r.URL.Query().Get("search"), 100),
	}

	categoryID, err := validators.ParseQueryUUID(r, "categoryId")
	if err != nil {
		return filters, err
	}
	filters.CategoryID = categoryID

	active, err := validators.ParseQueryBool(r, "isActive")
	if err != nil {
		return filters, err
	}
	filters.IsActive = active

	low, err := validators.ParseQueryBool(r, "lowStock")
	if err != nil {
		return filters, err
	}
	filters.LowStockOnly = low != nil && *low

	return filters, nil
}

func productIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	productID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return productID, nil
}

func parseOptionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return &parsed, nil
}
