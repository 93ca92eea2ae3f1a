package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/internal/analytics"
	"github.com/angelmondragon/pos-backend/internal/auth"
	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/internal/checkout"
	products "github.com/angelmondragon/pos-backend/internal/products"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/internal/users"
	pkgAuth "github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
	"github.com/angelmondragon/pos-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{AccessToken: "a", RefreshToken: "r"}, nil
}

func (stubAuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.TokenPair, error) {
	return &auth.TokenPair{}, nil
}

func (stubAuthService) Logout(ctx context.Context, accessToken string) error {
	return nil
}

type stubUserService struct{}

func (stubUserService) Register(ctx context.Context, input users.RegisterInput) (*users.RegisterResult, error) {
	return &users.RegisterResult{User: &users.UserDTO{ID: uuid.New(), Email: input.Email, Role: input.Role}}, nil
}

func (stubUserService) List(ctx context.Context) ([]users.UserDTO, error) {
	return []users.UserDTO{}, nil
}

type stubProductService struct{}

func (stubProductService) CreateProduct(ctx context.Context, input products.CreateProductInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: uuid.New(), Name: input.Name, SKU: input.SKU, Price: input.Price}, nil
}

func (stubProductService) UpdateProduct(ctx context.Context, productID uuid.UUID, input products.UpdateProductInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: productID}, nil
}

func (stubProductService) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	return nil
}

func (stubProductService) GetProduct(ctx context.Context, productID uuid.UUID) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: productID}, nil
}

func (stubProductService) ListProducts(ctx context.Context, filters products.ListFilters) ([]products.ProductDTO, error) {
	return []products.ProductDTO{}, nil
}

func (stubProductService) CreateCategory(ctx context.Context, input products.CreateCategoryInput) (*products.CategoryDTO, error) {
	return &products.CategoryDTO{ID: uuid.New(), Name: input.Name}, nil
}

func (stubProductService) ListCategories(ctx context.Context) ([]products.CategoryDTO, error) {
	return []products.CategoryDTO{}, nil
}

type stubCartService struct{}

func (stubCartService) view() *cart.View {
	return &cart.View{Cart: cart.New()}
}

func (s stubCartService) Get(ctx context.Context, sessionID string) (*cart.View, error) {
	return s.view(), nil
}

func (s stubCartService) AddItem(ctx context.Context, sessionID string, productID uuid.UUID) (*cart.View, error) {
	return s.view(), nil
}

func (s stubCartService) UpdateItem(ctx context.Context, sessionID string, productID uuid.UUID, input cart.UpdateItemInput) (*cart.View, error) {
	return s.view(), nil
}

func (s stubCartService) RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (*cart.View, error) {
	return s.view(), nil
}

func (s stubCartService) SetDiscount(ctx context.Context, sessionID string, pct decimal.Decimal) (*cart.View, error) {
	return s.view(), nil
}

func (stubCartService) Clear(ctx context.Context, sessionID string) error {
	return nil
}

type stubCartStore struct{}

func (stubCartStore) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	return cart.New(), nil
}

type countingCheckoutService struct {
	submits int
}

func (s *countingCheckoutService) Checkout(ctx context.Context, input checkout.Input) (*checkout.Result, error) {
	return s.result(input.OperatorID), nil
}

func (s *countingCheckoutService) Submit(ctx context.Context, submission checkout.Submission) (*checkout.Result, error) {
	s.submits++
	return s.result(submission.OperatorID), nil
}

func (s *countingCheckoutService) result(operatorID uuid.UUID) *checkout.Result {
	return &checkout.Result{Sale: &models.Sale{
		ID:            uuid.New(),
		OperatorID:    operatorID,
		PaymentMethod: enums.PaymentMethodCard,
		Status:        enums.SaleStatusCompleted,
	}}
}

type stubSalesService struct{}

func (stubSalesService) Get(ctx context.Context, viewer sales.Viewer, saleID uuid.UUID) (*sales.SaleDTO, error) {
	return &sales.SaleDTO{ID: saleID}, nil
}

func (stubSalesService) List(ctx context.Context, viewer sales.Viewer, params pagination.Params) (*sales.SaleList, error) {
	return &sales.SaleList{Sales: []sales.SaleDTO{}}, nil
}

type stubAnalyticsService struct{}

func (stubAnalyticsService) Dashboard(ctx context.Context, viewer sales.Viewer) (*analytics.Dashboard, error) {
	return &analytics.Dashboard{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "router-test-secret",
			Issuer:                 "pos-api",
			ExpirationMinutes:      15,
			RefreshTokenTTLMinutes: 60,
		},
	}
}

type testRouter struct {
	t        *testing.T
	cfg      *config.Config
	handler  http.Handler
	checkout *countingCheckoutService
}

func newTestRouter(t *testing.T, cfg *config.Config) *testRouter {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	checkoutSvc := &countingCheckoutService{}

	handler := NewRouter(
		cfg,
		logg,
		stubPinger{},
		redisClient,
		promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
		stubSessionManager{},
		stubAuthService{},
		stubUserService{},
		stubProductService{},
		stubCartService{},
		stubCartStore{},
		checkoutSvc,
		stubSalesService{},
		stubAnalyticsService{},
	)
	return &testRouter{t: t, cfg: cfg, handler: handler, checkout: checkoutSvc}
}

// call sends one request. role "" means anonymous; idemKey "" omits the header.
func (r *testRouter) call(method, path, body string, role enums.UserRole, idemKey string) *httptest.ResponseRecorder {
	r.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if role != "" {
		token, err := pkgAuth.MintAccessToken(r.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
			UserID: uuid.New(),
			Role:   role,
		})
		if err != nil {
			r.t.Fatalf("mint token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	r.handler.ServeHTTP(rec, req)
	return rec
}

func TestOperationalEndpoints(t *testing.T) {
	router := newTestRouter(t, testConfig())
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		if rec := router.call(http.MethodGet, path, "", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRouteAccessByRole(t *testing.T) {
	const (
		product = `{"name":"Flat White","sku":"FW-12","price":4.2}`
		user    = `{"email":"till2@example.com","fullName":"Till Two"}`
	)
	cases := []struct {
		method, path, body string
		role               enums.UserRole
		want               int
	}{
		{http.MethodGet, "/api/v1/products", "", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/products", "", enums.UserRoleCashier, http.StatusOK},
		{http.MethodGet, "/api/v1/cart", "", enums.UserRoleCashier, http.StatusOK},
		{http.MethodGet, "/api/v1/analytics/dashboard", "", enums.UserRoleCashier, http.StatusOK},
		{http.MethodPost, "/api/v1/products", product, enums.UserRoleCashier, http.StatusForbidden},
		{http.MethodPost, "/api/v1/products", product, enums.UserRoleManager, http.StatusCreated},
		{http.MethodPost, "/api/v1/users", user, enums.UserRoleManager, http.StatusForbidden},
		{http.MethodPost, "/api/v1/users", user, enums.UserRoleAdmin, http.StatusCreated},
	}

	router := newTestRouter(t, testConfig())
	for i, tc := range cases {
		idemKey := ""
		if tc.method == http.MethodPost {
			idemKey = fmt.Sprintf("access-%d", i)
		}
		rec := router.call(tc.method, tc.path, tc.body, tc.role, idemKey)
		if rec.Code != tc.want {
			t.Fatalf("%s %s as %q = %d, want %d: %s", tc.method, tc.path, tc.role, rec.Code, tc.want, rec.Body.String())
		}
	}
}

func TestSaleSubmissionNeedsIdempotencyKeyAndReplays(t *testing.T) {
	router := newTestRouter(t, testConfig())
	body := `{"items":[{"productId":"` + uuid.NewString() + `","quantity":2,"unitPrice":3.5}],"paymentMethod":"CARD"}`

	if rec := router.call(http.MethodPost, "/api/v1/sales", body, enums.UserRoleCashier, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key = %d, want 400", rec.Code)
	}

	// Replays are scoped per operator, so both attempts share one token.
	token, err := pkgAuth.MintAccessToken(router.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCashier})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	var bodies []string
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "till-4-sale-0091")
		rec := httptest.NewRecorder()
		router.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit = %d: %s", rec.Code, rec.Body.String())
		}
		bodies = append(bodies, rec.Body.String())
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("second response should be the stored one")
	}
	if router.checkout.submits != 1 {
		t.Fatalf("submits = %d, want 1", router.checkout.submits)
	}
}

func TestBootstrapRegistrationHiddenInProd(t *testing.T) {
	body := `{"email":"owner@example.com","fullName":"Owner","password":"correct-horse"}`
	const path = "/api/admin/v1/auth/register"

	if rec := newTestRouter(t, testConfig()).call(http.MethodPost, path, body, "", ""); rec.Code != http.StatusCreated {
		t.Fatalf("dev register = %d: %s", rec.Code, rec.Body.String())
	}

	cfg := testConfig()
	cfg.App.Env = config.AppEnvProd
	if rec := newTestRouter(t, cfg).call(http.MethodPost, path, body, "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("prod register = %d, want 404", rec.Code)
	}
}
