package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/internal/checkout/helpers"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

// SubmissionLine is one line of a terminal-built cart.
type SubmissionLine struct {
	ProductID      uuid.UUID
	Quantity       int
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	Subtotal       *decimal.Decimal
}

// Submission is a complete cart sent by a terminal together with the amounts
// it displayed. The amounts are checked, never trusted.
type Submission struct {
	OperatorID         uuid.UUID
	OperatorRole       enums.UserRole
	Items              []SubmissionLine
	DiscountPercentage decimal.Decimal
	Subtotal           *decimal.Decimal
	DiscountAmount     *decimal.Decimal
	TaxAmount          *decimal.Decimal
	TotalAmount        *decimal.Decimal
	PaymentMethod      enums.PaymentMethod
	AmountTendered     *decimal.Decimal
}

func (s *service) Submit(ctx context.Context, submission Submission) (*Result, error) {
	started := time.Now()
	result, err := s.submit(ctx, submission)
	s.record(ctx, submission.PaymentMethod, started, result, err)
	return result, err
}

func (s *service) submit(ctx context.Context, submission Submission) (*Result, error) {
	if submission.OperatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator required")
	}
	if len(submission.Items) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrEmptyCart, "cart is empty")
	}

	c := cart.New()
	c.DiscountPercentage = submission.DiscountPercentage
	for _, line := range submission.Items {
		c.Items = append(c.Items, cart.Item{
			ProductID:    line.ProductID,
			UnitPrice:    line.UnitPrice,
			Quantity:     line.Quantity,
			LineDiscount: line.DiscountAmount,
		})
	}
	if lineErr := helpers.ValidateLines(c.Items); lineErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, fmt.Errorf("%w: %w", ErrInvalidLine, lineErr), lineErr.Reason).
			WithDetails(lineErr.Details())
	}
	if err := s.resolveNames(ctx, c); err != nil {
		return nil, err
	}

	input := Input{
		OperatorID:     submission.OperatorID,
		OperatorRole:   submission.OperatorRole,
		Cart:           c,
		PaymentMethod:  submission.PaymentMethod,
		AmountTendered: submission.AmountTendered,
	}
	p, err := s.prepare(input)
	if err != nil {
		return nil, err
	}

	mismatches := helpers.CompareTotals(helpers.Claimed{
		Subtotal:       submission.Subtotal,
		DiscountAmount: submission.DiscountAmount,
		TaxAmount:      submission.TaxAmount,
		TotalAmount:    submission.TotalAmount,
	}, p.summary, s.cfg.TotalsTolerance)
	for i, line := range submission.Items {
		computed := c.Items[i].Subtotal()
		if line.Subtotal != nil && !money.WithinTolerance(*line.Subtotal, computed, s.cfg.TotalsTolerance) {
			mismatches = append(mismatches, helpers.Mismatch{
				Field:     fmt.Sprintf("items[%d].subtotal", i),
				Submitted: *line.Subtotal,
				Computed:  computed,
			})
		}
	}
	if len(mismatches) > 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrTotalsMismatch, "submitted totals do not match server calculation").
			WithDetails(map[string]any{"mismatches": mismatches})
	}

	return s.commit(ctx, input, p)
}

// resolveNames fills the product name snapshot for every line and rejects
// unknown or inactive products before a transaction is opened.
func (s *service) resolveNames(ctx context.Context, c *cart.Cart) error {
	names := make(map[uuid.UUID]string, len(c.Items))
	for i := range c.Items {
		id := c.Items[i].ProductID
		if name, ok := names[id]; ok {
			c.Items[i].Name = name
			continue
		}
		product, err := s.products.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrProductNotFound, "product not found").
					WithDetails(map[string]any{"productId": id.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("%w: %w", ErrPersistence, err), "load product")
		}
		if !product.IsActive {
			lineErr := &helpers.LineError{Index: i, ProductID: id, Reason: "product is not active"}
			return pkgerrors.Wrap(pkgerrors.CodeValidation, fmt.Errorf("%w: %w", ErrInvalidLine, lineErr), lineErr.Reason).
				WithDetails(lineErr.Details())
		}
		names[id] = product.Name
		c.Items[i].Name = product.Name
	}
	return nil
}
