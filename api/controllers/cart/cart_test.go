package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/api/middleware"
	cartsvc "github.com/angelmondragon/pos-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/pos-backend/internal/checkout"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

type stubCartService struct {
	view        *cartsvc.View
	err         error
	lastSession string
	lastProduct uuid.UUID
	lastUpdate  cartsvc.UpdateItemInput
	cleared     bool
}

func (s *stubCartService) Get(ctx context.Context, sessionID string) (*cartsvc.View, error) {
	s.lastSession = sessionID
	return s.view, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, sessionID string, productID uuid.UUID) (*cartsvc.View, error) {
	s.lastSession = sessionID
	s.lastProduct = productID
	return s.view, s.err
}

func (s *stubCartService) UpdateItem(ctx context.Context, sessionID string, productID uuid.UUID, input cartsvc.UpdateItemInput) (*cartsvc.View, error) {
	s.lastProduct = productID
	s.lastUpdate = input
	return s.view, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (*cartsvc.View, error) {
	s.lastProduct = productID
	return s.view, s.err
}

func (s *stubCartService) SetDiscount(ctx context.Context, sessionID string, pct decimal.Decimal) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s *stubCartService) Clear(ctx context.Context, sessionID string) error {
	s.cleared = true
	return nil
}

type stubCartLoader struct {
	cart *cartsvc.Cart
}

func (s *stubCartLoader) Load(ctx context.Context, sessionID string) (*cartsvc.Cart, error) {
	return s.cart, nil
}

type stubCheckoutService struct {
	lastInput checkoutsvc.Input
	result    *checkoutsvc.Result
	err       error
}

func (s *stubCheckoutService) Checkout(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	s.lastInput = input
	return s.result, s.err
}

func (s *stubCheckoutService) Submit(ctx context.Context, submission checkoutsvc.Submission) (*checkoutsvc.Result, error) {
	return nil, errors.New("not used")
}

func sampleView() *cartsvc.View {
	c := cartsvc.New()
	_, _ = c.Add(cartsvc.ProductSnapshot{ID: uuid.New(), Name: "Coffee", Price: decimal.RequireFromString("2.50")})
	rate := decimal.NewFromInt(8)
	return &cartsvc.View{Cart: c, Summary: c.Summary(rate), TaxRate: rate}
}

func terminalContext(userID uuid.UUID, role enums.UserRole) context.Context {
	ctx := middleware.WithUserID(context.Background(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return middleware.WithSessionID(ctx, "session-1")
}

func withProductParam(ctx context.Context, productID string) context.Context {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("productId", productID)
	return context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
}

func TestCartFetchSuccess(t *testing.T) {
	svc := &stubCartService{view: sampleView()}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = req.WithContext(terminalContext(uuid.New(), enums.UserRoleCashier))

	resp := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastSession != "session-1" {
		t.Fatalf("expected session-1, got %q", svc.lastSession)
	}

	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.ItemCount != 1 {
		t.Fatalf("unexpected cart %+v", envelope.Data)
	}
	if !envelope.Data.TotalAmount.Equal(decimal.RequireFromString("2.70")) {
		t.Fatalf("expected total 2.70, got %s", envelope.Data.TotalAmount)
	}
}

func TestCartFetchRequiresSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	CartFetch(&stubCartService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItem(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{view: sampleView()}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"productId":"`+productID.String()+`"}`))
	req = req.WithContext(terminalContext(uuid.New(), enums.UserRoleCashier))

	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastProduct != productID {
		t.Fatalf("expected product %s, got %s", productID, svc.lastProduct)
	}
}

func TestCartAddItemInsufficientStock(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"productId":"`+uuid.NewString()+`"}`))
	req = req.WithContext(terminalContext(uuid.New(), enums.UserRoleCashier))

	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCartUpdateItem(t *testing.T) {
	productID := uuid.New()

	t.Run("requires a change", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+productID.String(), strings.NewReader(`{}`))
		ctx := withProductParam(terminalContext(uuid.New(), enums.UserRoleCashier), productID.String())
		req = req.WithContext(ctx)
		resp := httptest.NewRecorder()
		CartUpdateItem(&stubCartService{view: sampleView()}, nil).ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", resp.Code)
		}
	})

	t.Run("invalid product id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/nope", strings.NewReader(`{"quantity":2}`))
		ctx := withProductParam(terminalContext(uuid.New(), enums.UserRoleCashier), "nope")
		req = req.WithContext(ctx)
		resp := httptest.NewRecorder()
		CartUpdateItem(&stubCartService{view: sampleView()}, nil).ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", resp.Code)
		}
	})

	t.Run("passes quantity and discount", func(t *testing.T) {
		svc := &stubCartService{view: sampleView()}
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+productID.String(), strings.NewReader(`{"quantity":3,"discountAmount":"0.50"}`))
		ctx := withProductParam(terminalContext(uuid.New(), enums.UserRoleCashier), productID.String())
		req = req.WithContext(ctx)
		resp := httptest.NewRecorder()
		CartUpdateItem(svc, nil).ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
		}
		if svc.lastUpdate.Quantity == nil || *svc.lastUpdate.Quantity != 3 {
			t.Fatalf("unexpected quantity %+v", svc.lastUpdate.Quantity)
		}
		if svc.lastUpdate.DiscountAmount == nil || !svc.lastUpdate.DiscountAmount.Equal(decimal.RequireFromString("0.5")) {
			t.Fatalf("unexpected discount %+v", svc.lastUpdate.DiscountAmount)
		}
	})
}

func TestCartSetDiscountRequiresPercentage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/discount", strings.NewReader(`{}`))
	req = req.WithContext(terminalContext(uuid.New(), enums.UserRoleCashier))
	resp := httptest.NewRecorder()
	CartSetDiscount(&stubCartService{view: sampleView()}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartClear(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)
	req = req.WithContext(terminalContext(uuid.New(), enums.UserRoleCashier))
	resp := httptest.NewRecorder()
	CartClear(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if !svc.cleared {
		t.Fatal("expected cart cleared")
	}
}

func TestCartCheckout(t *testing.T) {
	operatorID := uuid.New()
	view := sampleView()

	t.Run("success clears cart", func(t *testing.T) {
		cartSvc := &stubCartService{}
		checkout := &stubCheckoutService{result: &checkoutsvc.Result{
			Sale: &models.Sale{
				ID:            uuid.New(),
				OperatorID:    operatorID,
				TotalAmount:   decimal.RequireFromString("2.70"),
				PaymentMethod: enums.PaymentMethodCash,
				ChangeDue:     decimal.RequireFromString("2.30"),
				Status:        enums.SaleStatusCompleted,
			},
			Change: decimal.RequireFromString("2.30"),
		}}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/checkout", strings.NewReader(`{"paymentMethod":"CASH","amountTendered":5}`))
		req = req.WithContext(terminalContext(operatorID, enums.UserRoleCashier))
		resp := httptest.NewRecorder()
		CartCheckout(checkout, &stubCartLoader{cart: view.Cart}, cartSvc, nil).ServeHTTP(resp, req)

		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
		}
		if checkout.lastInput.OperatorID != operatorID || checkout.lastInput.PaymentMethod != enums.PaymentMethodCash {
			t.Fatalf("unexpected checkout input %+v", checkout.lastInput)
		}
		if checkout.lastInput.AmountTendered == nil || !checkout.lastInput.AmountTendered.Equal(decimal.NewFromInt(5)) {
			t.Fatalf("unexpected tender %v", checkout.lastInput.AmountTendered)
		}
		if !cartSvc.cleared {
			t.Fatal("expected cart cleared after checkout")
		}
	})

	t.Run("failure keeps cart", func(t *testing.T) {
		cartSvc := &stubCartService{}
		checkout := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock for Coffee")}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/checkout", strings.NewReader(`{"paymentMethod":"CARD"}`))
		req = req.WithContext(terminalContext(operatorID, enums.UserRoleCashier))
		resp := httptest.NewRecorder()
		CartCheckout(checkout, &stubCartLoader{cart: view.Cart}, cartSvc, nil).ServeHTTP(resp, req)

		if resp.Code != http.StatusConflict {
			t.Fatalf("expected 409 got %d", resp.Code)
		}
		if cartSvc.cleared {
			t.Fatal("cart must survive a failed checkout")
		}
	})

	t.Run("unknown payment method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/checkout", strings.NewReader(`{"paymentMethod":"BARTER"}`))
		req = req.WithContext(terminalContext(operatorID, enums.UserRoleCashier))
		resp := httptest.NewRecorder()
		CartCheckout(&stubCheckoutService{}, &stubCartLoader{cart: view.Cart}, &stubCartService{}, nil).ServeHTTP(resp, req)

		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", resp.Code)
		}
	})
}
