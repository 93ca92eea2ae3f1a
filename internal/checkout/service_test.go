package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/internal/checkout/helpers"
	"github.com/angelmondragon/pos-backend/internal/products"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
)

type testEnv struct {
	client *db.Client
	svc    Service
}

func newTestEnv(t *testing.T, publisher outboxPublisher) *testEnv {
	t.Helper()
	client := dbtest.Open(t)
	if publisher == nil {
		publisher = outbox.NewService(outbox.NewRepository(client.DB()), nil)
	}
	svc, err := NewService(ServiceParams{
		Tx:       client,
		Sales:    sales.NewRepository(client.DB()),
		Products: products.NewRepository(client.DB()),
		Outbox:   publisher,
		Config: config.CheckoutConfig{
			TaxRatePercent:    decimal.NewFromInt(10),
			LowStockThreshold: 10,
			TotalsTolerance:   decimal.RequireFromString("0.01"),
		},
		Metrics: metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{client: client, svc: svc}
}

func (e *testEnv) seedProduct(t *testing.T, name, price string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		Name:          name,
		SKU:           "SKU-" + uuid.NewString(),
		Price:         decimal.RequireFromString(price),
		Cost:          decimal.RequireFromString("0.50"),
		StockQuantity: stock,
		IsActive:      true,
	}
	if err := e.client.DB().Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (e *testEnv) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := e.client.DB().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (e *testEnv) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := e.client.DB().First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.StockQuantity
}

func cartWith(t *testing.T, lines map[*models.Product]int) *cart.Cart {
	t.Helper()
	c := cart.New()
	for product, qty := range lines {
		if _, err := c.Add(cart.ProductSnapshot{ID: product.ID, Name: product.Name, Price: product.Price}); err != nil {
			t.Fatalf("add: %v", err)
		}
		c.SetQuantity(product.ID, qty)
	}
	return c
}

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestCheckoutCommitsSaleStockAndEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	espresso := env.seedProduct(t, "Espresso", "19.99", 5)
	muffin := env.seedProduct(t, "Muffin", "5.00", 12)

	c := cart.New()
	for i := 0; i < 2; i++ {
		c.Add(cart.ProductSnapshot{ID: espresso.ID, Name: espresso.Name, Price: espresso.Price})
	}
	c.Add(cart.ProductSnapshot{ID: muffin.ID, Name: muffin.Name, Price: muffin.Price})
	c.SetQuantity(muffin.ID, 3)
	if err := c.SetLineDiscount(muffin.ID, decimal.RequireFromString("1.00")); err != nil {
		t.Fatalf("line discount: %v", err)
	}
	if err := c.SetDiscountPercentage(decimal.NewFromInt(10)); err != nil {
		t.Fatalf("discount: %v", err)
	}

	result, err := env.svc.Checkout(context.Background(), Input{
		OperatorID:     uuid.New(),
		OperatorRole:   enums.UserRoleCashier,
		Cart:           c,
		PaymentMethod:  enums.PaymentMethodCash,
		AmountTendered: dec("60.00"),
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	expect := map[string]struct{ got, want decimal.Decimal }{
		"subtotal": {result.Sale.Subtotal, decimal.RequireFromString("53.98")},
		"discount": {result.Sale.DiscountAmount, decimal.RequireFromString("5.40")},
		"tax":      {result.Sale.TaxAmount, decimal.RequireFromString("4.86")},
		"total":    {result.Sale.TotalAmount, decimal.RequireFromString("53.44")},
		"change":   {result.Change, decimal.RequireFromString("6.56")},
	}
	for name, pair := range expect {
		if !pair.got.Equal(pair.want) {
			t.Fatalf("%s: expected %s got %s", name, pair.want, pair.got)
		}
	}

	stored, err := sales.NewRepository(env.client.DB()).FindByID(context.Background(), result.Sale.ID)
	if err != nil {
		t.Fatalf("reload sale: %v", err)
	}
	if len(stored.Items) != 2 || stored.Items[0].ProductName != "Espresso" || stored.Items[1].Position != 1 {
		t.Fatalf("unexpected items %+v", stored.Items)
	}
	itemsTotal := decimal.Zero
	for _, item := range stored.Items {
		itemsTotal = itemsTotal.Add(item.Subtotal)
	}
	if !itemsTotal.Sub(stored.DiscountAmount).Add(stored.TaxAmount).Equal(stored.TotalAmount) {
		t.Fatalf("sale does not balance: items=%s discount=%s tax=%s total=%s",
			itemsTotal, stored.DiscountAmount, stored.TaxAmount, stored.TotalAmount)
	}
	if stored.AmountTendered == nil || !stored.AmountTendered.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("amount tendered not stored: %v", stored.AmountTendered)
	}

	if got := env.stockOf(t, espresso.ID); got != 3 {
		t.Fatalf("espresso stock = %d", got)
	}
	if got := env.stockOf(t, muffin.ID); got != 9 {
		t.Fatalf("muffin stock = %d", got)
	}

	var events []models.OutboxEvent
	if err := env.client.DB().Order("event_type ASC").Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected sale + stock-low events, got %d", len(events))
	}
	if events[0].EventType != enums.EventSaleCompleted || events[0].AggregateID != result.Sale.ID {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].EventType != enums.EventStockLow || events[1].AggregateID != muffin.ID {
		t.Fatalf("unexpected stock event %+v", events[1])
	}
}

func TestCheckoutRoundingExample(t *testing.T) {
	env := newTestEnv(t, nil)
	product := env.seedProduct(t, "Grinder", "100.00", 3)

	c := cartWith(t, map[*models.Product]int{&product: 1})
	if err := c.SetDiscountPercentage(decimal.NewFromInt(7)); err != nil {
		t.Fatalf("discount: %v", err)
	}

	result, err := env.svc.Checkout(context.Background(), Input{
		OperatorID:    uuid.New(),
		Cart:          c,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !result.Summary.DiscountAmount.Equal(decimal.RequireFromString("7.00")) ||
		!result.Summary.Tax.Equal(decimal.RequireFromString("9.30")) ||
		!result.Summary.Total.Equal(decimal.RequireFromString("102.30")) {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
	if !result.Change.IsZero() || result.Sale.AmountTendered != nil {
		t.Fatalf("card sales carry no tender: change=%s tendered=%v", result.Change, result.Sale.AmountTendered)
	}
}

func TestCheckoutEmptyCartHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, c := range []*cart.Cart{nil, cart.New()} {
		_, err := env.svc.Checkout(context.Background(), Input{
			OperatorID:     uuid.New(),
			Cart:           c,
			PaymentMethod:  enums.PaymentMethodCash,
			AmountTendered: dec("10.00"),
		})
		if !errors.Is(err, ErrEmptyCart) {
			t.Fatalf("expected ErrEmptyCart, got %v", err)
		}
		if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation code, got %v", err)
		}
	}
	if n := env.count(t, &models.Sale{}); n != 0 {
		t.Fatalf("expected no sales, got %d", n)
	}
	if n := env.count(t, &models.OutboxEvent{}); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestCheckoutInsufficientPayment(t *testing.T) {
	env := newTestEnv(t, nil)
	product := env.seedProduct(t, "Beans", "12.00", 5)

	for _, tendered := range []*decimal.Decimal{nil, dec("13.19")} {
		_, err := env.svc.Checkout(context.Background(), Input{
			OperatorID:     uuid.New(),
			Cart:           cartWith(t, map[*models.Product]int{&product: 1}),
			PaymentMethod:  enums.PaymentMethodCash,
			AmountTendered: tendered,
		})
		if !errors.Is(err, ErrInsufficientPayment) {
			t.Fatalf("expected ErrInsufficientPayment, got %v", err)
		}
	}

	result, err := env.svc.Checkout(context.Background(), Input{
		OperatorID:     uuid.New(),
		Cart:           cartWith(t, map[*models.Product]int{&product: 1}),
		PaymentMethod:  enums.PaymentMethodCash,
		AmountTendered: dec("13.20"),
	})
	if err != nil {
		t.Fatalf("exact tender should pass: %v", err)
	}
	if !result.Change.IsZero() {
		t.Fatalf("expected zero change, got %s", result.Change)
	}
	if env.stockOf(t, product.ID) != 4 {
		t.Fatalf("stock should only drop for the committed sale")
	}
}

func TestCheckoutRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, nil)
	product := env.seedProduct(t, "Tea", "3.50", 5)

	badLine := cartWith(t, map[*models.Product]int{&product: 1})
	badLine.Items[0].Quantity = 0
	_, err := env.svc.Checkout(context.Background(), Input{
		OperatorID: uuid.New(), Cart: badLine, PaymentMethod: enums.PaymentMethodCard,
	})
	if !errors.Is(err, ErrInvalidLine) {
		t.Fatalf("expected ErrInvalidLine, got %v", err)
	}

	_, err = env.svc.Checkout(context.Background(), Input{
		OperatorID: uuid.New(), Cart: cartWith(t, map[*models.Product]int{&product: 1}), PaymentMethod: "CHEQUE",
	})
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}

	overDiscounted := cartWith(t, map[*models.Product]int{&product: 1})
	overDiscounted.Items[0].LineDiscount = decimal.RequireFromString("5.00")
	_, err = env.svc.Checkout(context.Background(), Input{
		OperatorID: uuid.New(), Cart: overDiscounted, PaymentMethod: enums.PaymentMethodCard,
	})
	if !errors.Is(err, ErrNegativeTotal) {
		t.Fatalf("expected ErrNegativeTotal, got %v", err)
	}

	_, err = env.svc.Checkout(context.Background(), Input{
		Cart: cartWith(t, map[*models.Product]int{&product: 1}), PaymentMethod: enums.PaymentMethodCard,
	})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if env.stockOf(t, product.ID) != 5 {
		t.Fatalf("stock changed on rejected checkouts")
	}
}

func TestCheckoutUnknownProductIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.seedProduct(t, "Latte", "4.00", 10)
	b := env.seedProduct(t, "Scone", "3.00", 10)
	ghost := models.Product{ID: uuid.New(), Name: "Ghost", Price: decimal.RequireFromString("1.00")}

	c := cartWith(t, map[*models.Product]int{&a: 2, &b: 1, &ghost: 1})
	_, err := env.svc.Checkout(context.Background(), Input{
		OperatorID:    uuid.New(),
		Cart:          c,
		PaymentMethod: enums.PaymentMethodDigital,
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if errors.Is(err, ErrPersistence) || !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("missing product must be a validation error, got %v", err)
	}
	if n := env.count(t, &models.Sale{}); n != 0 {
		t.Fatalf("expected zero sales, got %d", n)
	}
	if n := env.count(t, &models.SaleItem{}); n != 0 {
		t.Fatalf("expected zero sale items, got %d", n)
	}
	if n := env.count(t, &models.OutboxEvent{}); n != 0 {
		t.Fatalf("expected zero events, got %d", n)
	}
	if env.stockOf(t, a.ID) != 10 || env.stockOf(t, b.ID) != 10 {
		t.Fatalf("stock changed despite rollback")
	}
}

func TestCheckoutConcurrentNeverOversells(t *testing.T) {
	env := newTestEnv(t, nil)
	product := env.seedProduct(t, "Limited Blend", "9.00", 5)

	carts := []*cart.Cart{
		cartWith(t, map[*models.Product]int{&product: 3}),
		cartWith(t, map[*models.Product]int{&product: 3}),
	}
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(carts))
	)
	for i, c := range carts {
		wg.Add(1)
		go func(i int, c *cart.Cart) {
			defer wg.Done()
			_, errs[i] = env.svc.Checkout(context.Background(), Input{
				OperatorID:    uuid.New(),
				Cart:          c,
				PaymentMethod: enums.PaymentMethodCard,
			})
		}(i, c)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientStock):
			if !pkgerrors.Is(err, pkgerrors.CodeOutOfStock) {
				t.Fatalf("expected insufficient stock code, got %v", err)
			}
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Fatalf("expected one success and one rejection, got %d/%d", ok, rejected)
	}
	if got := env.stockOf(t, product.ID); got != 2 {
		t.Fatalf("expected stock 2, got %d", got)
	}
	if n := env.count(t, &models.Sale{}); n != 1 {
		t.Fatalf("expected one sale, got %d", n)
	}
}

type failingPublisher struct{}

func (failingPublisher) Emit(context.Context, *gorm.DB, ...outbox.DomainEvent) error {
	return errors.New("connection reset")
}

func TestCheckoutPersistenceFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, failingPublisher{})
	product := env.seedProduct(t, "Filter", "2.00", 5)

	_, err := env.svc.Checkout(context.Background(), Input{
		OperatorID:    uuid.New(),
		Cart:          cartWith(t, map[*models.Product]int{&product: 2}),
		PaymentMethod: enums.PaymentMethodCard,
	})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
	if !pkgerrors.MetadataFor(typed.Code()).Retryable {
		t.Fatalf("persistence failures should be retryable")
	}
	if n := env.count(t, &models.Sale{}); n != 0 {
		t.Fatalf("expected rollback, got %d sales", n)
	}
	if env.stockOf(t, product.ID) != 5 {
		t.Fatalf("stock changed despite rollback")
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}

func submissionFor(product models.Product, qty int) Submission {
	return Submission{
		OperatorID:    uuid.New(),
		OperatorRole:  enums.UserRoleCashier,
		Items:         []SubmissionLine{{ProductID: product.ID, Quantity: qty, UnitPrice: product.Price}},
		PaymentMethod: enums.PaymentMethodCard,
	}
}

func TestSubmitAcceptsTotalsWithinTolerance(t *testing.T) {
	env := newTestEnv(t, nil)
	product := env.seedProduct(t, "Cold Brew", "4.25", 20)

	submission := submissionFor(product, 2)
	submission.Items[0].Subtotal = dec("8.50")
	submission.Subtotal = dec("8.50")
	submission.TaxAmount = dec("0.86")
	submission.TotalAmount = dec("9.36")

	result, err := env.svc.Submit(context.Background(), submission)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Sale.TotalAmount.Equal(decimal.RequireFromString("9.35")) {
		t.Fatalf("server total should win, got %s", result.Sale.TotalAmount)
	}
	if result.Sale.Items[0].ProductName != "Cold Brew" {
		t.Fatalf("expected catalog name, got %q", result.Sale.Items[0].ProductName)
	}
	if env.stockOf(t, product.ID) != 18 {
		t.Fatalf("stock not decremented")
	}
}

func TestSubmitRejectsTotalsMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	product := env.seedProduct(t, "Cold Brew", "4.25", 20)

	submission := submissionFor(product, 2)
	submission.Items[0].Subtotal = dec("8.00")
	submission.TotalAmount = dec("9.00")

	_, err := env.svc.Submit(context.Background(), submission)
	if !errors.Is(err, ErrTotalsMismatch) {
		t.Fatalf("expected ErrTotalsMismatch, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", pkgerrors.As(err).Details())
	}
	mismatches, _ := details["mismatches"].([]helpers.Mismatch)
	if len(mismatches) != 2 || mismatches[0].Field != "totalAmount" || mismatches[1].Field != "items[0].subtotal" {
		t.Fatalf("unexpected mismatches %+v", mismatches)
	}
	if env.count(t, &models.Sale{}) != 0 || env.stockOf(t, product.ID) != 20 {
		t.Fatalf("mismatch must not touch the database")
	}
}

func TestSubmitNeedsPercentageAndTenderFromTerminal(t *testing.T) {
	env := newTestEnv(t, nil)
	product := env.seedProduct(t, "House Blend", "10.00", 20)

	submission := submissionFor(product, 1)
	submission.DiscountAmount = dec("1.00")
	submission.TaxAmount = dec("0.90")
	submission.TotalAmount = dec("9.90")

	_, err := env.svc.Submit(context.Background(), submission)
	if !errors.Is(err, ErrTotalsMismatch) {
		t.Fatalf("discount without a percentage should not match, got %v", err)
	}
	details, _ := pkgerrors.As(err).Details().(map[string]any)
	mismatches, _ := details["mismatches"].([]helpers.Mismatch)
	if len(mismatches) == 0 || mismatches[0].Field != "discountAmount" {
		t.Fatalf("expected discountAmount mismatch first, got %+v", mismatches)
	}

	submission.DiscountPercentage = decimal.NewFromInt(10)
	submission.PaymentMethod = enums.PaymentMethodCash
	if _, err := env.svc.Submit(context.Background(), submission); !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("cash without tender should be rejected, got %v", err)
	}

	submission.AmountTendered = dec("10.00")
	result, err := env.svc.Submit(context.Background(), submission)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Sale.TotalAmount.Equal(decimal.RequireFromString("9.90")) || !result.Change.Equal(decimal.RequireFromString("0.10")) {
		t.Fatalf("unexpected total %s change %s", result.Sale.TotalAmount, result.Change)
	}
	if env.stockOf(t, product.ID) != 19 {
		t.Fatalf("stock not decremented once")
	}
}

func TestSubmitRejectsUnknownAndInactiveProducts(t *testing.T) {
	env := newTestEnv(t, nil)
	product := env.seedProduct(t, "Retired Roast", "7.00", 20)

	ghost := submissionFor(models.Product{ID: uuid.New(), Price: decimal.RequireFromString("1.00")}, 1)
	if _, err := env.svc.Submit(context.Background(), ghost); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	if err := env.client.DB().Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := env.svc.Submit(context.Background(), submissionFor(product, 1)); !errors.Is(err, ErrInvalidLine) {
		t.Fatalf("expected ErrInvalidLine, got %v", err)
	}

	if _, err := env.svc.Submit(context.Background(), Submission{OperatorID: uuid.New()}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}
