package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type cartStore interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}

// View is the cart plus its derived money summary.
type View struct {
	Cart    *Cart
	Summary money.Summary
	TaxRate decimal.Decimal
}

// UpdateItemInput carries optional edits for a single line.
type UpdateItemInput struct {
	Quantity       *int
	DiscountAmount *decimal.Decimal
}

// Service exposes the terminal cart operations.
type Service interface {
	Get(ctx context.Context, sessionID string) (*View, error)
	AddItem(ctx context.Context, sessionID string, productID uuid.UUID) (*View, error)
	UpdateItem(ctx context.Context, sessionID string, productID uuid.UUID, input UpdateItemInput) (*View, error)
	RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (*View, error)
	SetDiscount(ctx context.Context, sessionID string, pct decimal.Decimal) (*View, error)
	Clear(ctx context.Context, sessionID string) error
}

type service struct {
	store    cartStore
	products productLoader
	taxRate  decimal.Decimal
}

// NewService builds a cart service backed by the provided store and catalog.
func NewService(store cartStore, products productLoader, taxRate decimal.Decimal) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{store: store, products: products, taxRate: taxRate}, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (*View, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(c), nil
}

func (s *service) AddItem(ctx context.Context, sessionID string, productID uuid.UUID) (*View, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available for sale").
			WithDetails(map[string]any{"productId": productID})
	}

	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	wanted := 1
	if existing, ok := c.Find(productID); ok {
		wanted = existing.Quantity + 1
	}
	if err := checkAvailable(product, wanted); err != nil {
		return nil, err
	}

	if _, err := c.Add(ProductSnapshot{ID: product.ID, Name: product.Name, Price: product.Price}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	return s.save(ctx, sessionID, c)
}

func (s *service) UpdateItem(ctx context.Context, sessionID string, productID uuid.UUID, input UpdateItemInput) (*View, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Find(productID); !ok {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrItemNotFound, "item not in cart")
	}

	if input.DiscountAmount != nil {
		if err := c.SetLineDiscount(productID, *input.DiscountAmount); err != nil {
			return nil, mapCartError(err)
		}
	}
	if input.Quantity != nil {
		if *input.Quantity >= 1 {
			product, err := s.products.FindByID(ctx, productID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
			}
			if product != nil {
				if err := checkAvailable(product, *input.Quantity); err != nil {
					return nil, err
				}
			}
		}
		c.SetQuantity(productID, *input.Quantity)
	}
	return s.save(ctx, sessionID, c)
}

func (s *service) RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (*View, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.Remove(productID)
	return s.save(ctx, sessionID, c)
}

func (s *service) SetDiscount(ctx context.Context, sessionID string, pct decimal.Decimal) (*View, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.SetDiscountPercentage(pct); err != nil {
		return nil, mapCartError(err)
	}
	return s.save(ctx, sessionID, c)
}

func (s *service) Clear(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) load(ctx context.Context, sessionID string) (*Cart, error) {
	c, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return c, nil
}

func (s *service) save(ctx context.Context, sessionID string, c *Cart) (*View, error) {
	if err := s.store.Save(ctx, sessionID, c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return s.view(c), nil
}

func (s *service) view(c *Cart) *View {
	return &View{Cart: c, Summary: c.Summary(s.taxRate), TaxRate: s.taxRate}
}

// checkAvailable is an early hint for the cashier; the checkout stock guard
// remains the authority on stock.
func checkAvailable(product *models.Product, quantity int) error {
	if quantity <= product.StockQuantity {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").WithDetails(map[string]any{
		"productId": product.ID,
		"requested": quantity,
		"available": product.StockQuantity,
	})
}

func mapCartError(err error) error {
	switch {
	case errors.Is(err, ErrItemNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "item not in cart")
	case errors.Is(err, ErrInvalidDiscount), errors.Is(err, ErrNegativeLineDiscount):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart")
	}
}
