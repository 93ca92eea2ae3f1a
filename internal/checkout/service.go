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
	"github.com/angelmondragon/pos-backend/internal/checkout/stock"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/money"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type stockGuard interface {
	Decrement(ctx context.Context, tx *gorm.DB, requests []stock.Request) ([]stock.Level, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

type stockEngine struct{}

func (stockEngine) Decrement(ctx context.Context, tx *gorm.DB, requests []stock.Request) ([]stock.Level, error) {
	return stock.Decrement(ctx, tx, requests)
}

// Service turns a cart into a committed sale.
type Service interface {
	// Checkout commits the cart as a sale. Validation happens before any
	// transaction is opened; a failure inside the transaction leaves no trace.
	Checkout(ctx context.Context, input Input) (*Result, error)
	// Submit checks out a cart sent inline by a terminal after verifying the
	// amounts it claims against the server's own computation.
	Submit(ctx context.Context, submission Submission) (*Result, error)
}

// Input is a cart ready to be paid.
type Input struct {
	OperatorID     uuid.UUID
	OperatorRole   enums.UserRole
	Cart           *cart.Cart
	PaymentMethod  enums.PaymentMethod
	AmountTendered *decimal.Decimal
}

// Result is the committed sale plus the figures shown on the receipt.
type Result struct {
	Sale    *models.Sale
	Summary money.Summary
	Change  decimal.Decimal
}

// ServiceParams bundles the checkout collaborators.
type ServiceParams struct {
	Tx       txRunner
	Sales    sales.Repository
	Products productLoader
	Stock    stockGuard
	Outbox   outboxPublisher
	Config   config.CheckoutConfig
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

type service struct {
	tx       txRunner
	sales    sales.Repository
	products productLoader
	stock    stockGuard
	outbox   outboxPublisher
	cfg      config.CheckoutConfig
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Sales == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	guard := params.Stock
	if guard == nil {
		guard = stockEngine{}
	}
	return &service{
		tx:       params.Tx,
		sales:    params.Sales,
		products: params.Products,
		stock:    guard,
		outbox:   params.Outbox,
		cfg:      params.Config,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	started := time.Now()
	result, err := s.checkout(ctx, input)
	s.record(ctx, input.PaymentMethod, started, result, err)
	return result, err
}

func (s *service) checkout(ctx context.Context, input Input) (*Result, error) {
	plan, err := s.prepare(input)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, input, plan)
}

// plan is the validated, server-computed money view of a checkout.
type plan struct {
	summary  money.Summary
	tendered *decimal.Decimal
	change   decimal.Decimal
}

func (s *service) prepare(input Input) (*plan, error) {
	if input.OperatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator required")
	}
	if input.Cart == nil || input.Cart.IsEmpty() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrEmptyCart, "cart is empty")
	}
	if lineErr := helpers.ValidateLines(input.Cart.Items); lineErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, fmt.Errorf("%w: %w", ErrInvalidLine, lineErr), lineErr.Reason).
			WithDetails(lineErr.Details())
	}
	if !helpers.ValidateDiscountPercentage(input.Cart.DiscountPercentage) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidDiscount, ErrInvalidDiscount.Error())
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidPaymentMethod, "payment method must be one of CASH, CARD, DIGITAL")
	}

	summary := input.Cart.Summary(s.cfg.TaxRatePercent)
	if summary.Total.IsNegative() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrNegativeTotal, ErrNegativeTotal.Error()).
			WithDetails(map[string]any{"totalAmount": summary.Total})
	}

	p := &plan{summary: summary, change: decimal.Zero}
	if !input.PaymentMethod.RequiresTender() {
		return p, nil
	}

	tendered := input.AmountTendered
	if tendered == nil || tendered.LessThan(summary.Total) {
		details := map[string]any{"totalAmount": summary.Total}
		if tendered != nil {
			details["amountTendered"] = *tendered
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInsufficientPayment, ErrInsufficientPayment.Error()).
			WithDetails(details)
	}
	if !money.HasAtMostCents(*tendered) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount tendered must have at most 2 decimal places")
	}
	amount := *tendered
	p.tendered = &amount
	p.change = money.Change(amount, summary.Total)
	return p, nil
}

func (s *service) commit(ctx context.Context, input Input, p *plan) (*Result, error) {
	sale := buildSale(input, p, s.cfg.TaxRatePercent)
	requests := make([]stock.Request, 0, len(input.Cart.Items))
	for _, item := range input.Cart.Items {
		requests = append(requests, stock.Request{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// Stock is claimed before the sale rows exist: a product missing from
		// the catalog must fail in the guard, not on the sale_items foreign key.
		levels, err := s.stock.Decrement(ctx, tx, requests)
		if err != nil {
			return err
		}
		if _, err := s.sales.WithTx(tx).Create(ctx, sale); err != nil {
			return err
		}

		actor := &outbox.ActorRef{UserID: input.OperatorID, Role: string(input.OperatorRole)}
		events := []outbox.DomainEvent{{
			EventType:     enums.EventSaleCompleted,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Actor:         actor,
			Data:          saleCompletedPayload(sale, p.summary),
		}}
		for _, level := range levels {
			if !level.Crossed(s.cfg.LowStockThreshold) {
				continue
			}
			events = append(events, outbox.DomainEvent{
				EventType:     enums.EventStockLow,
				AggregateType: enums.AggregateProduct,
				AggregateID:   level.ProductID,
				Actor:         actor,
				Data: payloads.StockLowEvent{
					ProductID: level.ProductID,
					SaleID:    sale.ID,
					Remaining: level.Remaining,
					Threshold: s.cfg.LowStockThreshold,
				},
			})
		}
		return s.outbox.Emit(ctx, tx, events...)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("%w: %w", ErrPersistence, err), "sale could not be saved; nothing was charged or deducted")
	}

	return &Result{Sale: sale, Summary: p.summary, Change: p.change}, nil
}

func buildSale(input Input, p *plan, taxRate decimal.Decimal) *models.Sale {
	items := make([]models.SaleItem, 0, len(input.Cart.Items))
	for i, item := range input.Cart.Items {
		items = append(items, models.SaleItem{
			ProductID:      item.ProductID,
			ProductName:    item.Name,
			Position:       i,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.LineDiscount,
			Subtotal:       item.Subtotal(),
		})
	}
	return &models.Sale{
		OperatorID:         input.OperatorID,
		Subtotal:           p.summary.Subtotal,
		DiscountPercentage: input.Cart.DiscountPercentage,
		DiscountAmount:     p.summary.DiscountAmount,
		TaxRate:            taxRate,
		TaxAmount:          p.summary.Tax,
		TotalAmount:        p.summary.Total,
		PaymentMethod:      input.PaymentMethod,
		AmountTendered:     p.tendered,
		ChangeDue:          p.change,
		Status:             enums.SaleStatusCompleted,
		Items:              items,
	}
}

func saleCompletedPayload(sale *models.Sale, summary money.Summary) payloads.SaleCompletedEvent {
	lines := make([]payloads.SaleLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, payloads.SaleLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		})
	}
	return payloads.SaleCompletedEvent{
		SaleID:         sale.ID,
		OperatorID:     sale.OperatorID,
		Subtotal:       sale.Subtotal,
		DiscountAmount: sale.DiscountAmount,
		TaxAmount:      sale.TaxAmount,
		TotalAmount:    sale.TotalAmount,
		PaymentMethod:  sale.PaymentMethod,
		ItemCount:      summary.ItemCount,
		Lines:          lines,
		CompletedAt:    time.Now().UTC(),
	}
}

func (s *service) record(ctx context.Context, method enums.PaymentMethod, started time.Time, result *Result, err error) {
	elapsed := time.Since(started)
	if err == nil {
		s.metrics.ObserveDuration("completed", elapsed)
		s.metrics.IncCompleted(string(method), result.Summary.Total.InexactFloat64())
		if s.logg != nil {
			logCtx := s.logg.WithSaleID(ctx, result.Sale.ID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"total":          result.Summary.Total.StringFixed(2),
				"payment_method": method,
				"items":          result.Summary.ItemCount,
			})
			s.logg.Info(logCtx, "sale completed")
		}
		return
	}

	reason := failureReason(err)
	s.metrics.ObserveDuration("failed", elapsed)
	s.metrics.IncFailed(reason)
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithField(ctx, "reason", reason)
	if errors.Is(err, ErrPersistence) {
		s.logg.Error(logCtx, "checkout failed", err)
		return
	}
	s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "checkout rejected")
}
