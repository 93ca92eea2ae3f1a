package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pos-backend/api/controllers"
	analyticscontrollers "github.com/angelmondragon/pos-backend/api/controllers/analytics"
	authcontrollers "github.com/angelmondragon/pos-backend/api/controllers/auth"
	cartcontrollers "github.com/angelmondragon/pos-backend/api/controllers/cart"
	salescontrollers "github.com/angelmondragon/pos-backend/api/controllers/sales"
	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/internal/analytics"
	"github.com/angelmondragon/pos-backend/internal/auth"
	"github.com/angelmondragon/pos-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/pos-backend/internal/checkout"
	products "github.com/angelmondragon/pos-backend/internal/products"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/internal/users"
	"github.com/angelmondragon/pos-backend/pkg/auth/session"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/redis"
)

type cartLoader interface {
	Load(ctx context.Context, sessionID string) (*cart.Cart, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	sessionManager session.AccessSessionChecker,
	authService auth.Service,
	userService users.Service,
	productService products.Service,
	cartService cart.Service,
	cartStore cartLoader,
	checkoutService checkoutsvc.Service,
	salesService sales.Service,
	analyticsService analytics.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginThrottle := middleware.Throttle(middleware.NewThrottlePolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginEmailLimit,
	), redisClient, logg)
	refreshThrottle := middleware.Throttle(middleware.NewThrottlePolicy(
		"refresh",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.RefreshIPLimit,
		0,
	), redisClient, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": dbP,
			"redis":    redisPinger(redisClient),
		}))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(loginThrottle).Post("/login", authcontrollers.AuthLogin(authService, logg))
		r.With(refreshThrottle).Post("/refresh", authcontrollers.AuthRefresh(authService, logg))
		r.Post("/logout", authcontrollers.AuthLogout(authService, logg))
	})

	if !cfg.App.IsProd() {
		r.Route("/api/admin/v1/auth", func(r chi.Router) {
			r.Post("/register", authcontrollers.AdminAuthRegister(userService, authService, cfg, logg))
		})
	}

	managers := middleware.RequireRole(logg, enums.UserRoleAdmin, enums.UserRoleManager)
	admins := middleware.RequireRole(logg, enums.UserRoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/users", func(r chi.Router) {
			r.With(managers).Get("/", controllers.UsersList(userService, logg))
			r.With(admins).Post("/", controllers.UsersRegister(userService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(productService, logg))
			r.Get("/{productId}", controllers.ProductGet(productService, logg))
			r.With(managers).Post("/", controllers.ProductCreate(productService, logg))
			r.With(managers).Put("/{productId}", controllers.ProductUpdate(productService, logg))
			r.With(managers).Delete("/{productId}", controllers.ProductDelete(productService, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoriesList(productService, logg))
			r.With(managers).Post("/", controllers.CategoryCreate(productService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(cartService, logg))
			r.Delete("/", cartcontrollers.CartClear(cartService, logg))
			r.Post("/items", cartcontrollers.CartAddItem(cartService, logg))
			r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(cartService, logg))
			r.Put("/discount", cartcontrollers.CartSetDiscount(cartService, logg))
			r.Post("/checkout", cartcontrollers.CartCheckout(checkoutService, cartStore, cartService, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", salescontrollers.Submit(checkoutService, logg))
			r.Get("/", salescontrollers.List(salesService, logg))
			r.Get("/{saleId}", salescontrollers.Detail(salesService, logg))
		})

		r.Get("/analytics/dashboard", analyticscontrollers.Dashboard(analyticsService, logg))
	})

	return r
}

// redisPinger keeps a nil *redis.Client from turning into a non-nil Pinger.
func redisPinger(client *redis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}
