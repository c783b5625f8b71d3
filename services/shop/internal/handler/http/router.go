package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gamehub/shop/pkg/health"
	"github.com/gamehub/shop/pkg/middleware"
	mockgw "github.com/gamehub/shop/services/shop/internal/gateway/mock"
	"github.com/gamehub/shop/services/shop/internal/service"
	"github.com/gamehub/shop/services/shop/internal/session"
)

const serviceName = "shop"

// RouterConfig holds the HTTP-level settings of the shop.
type RouterConfig struct {
	Cookie             session.CookieConfig
	CORS               middleware.CORSConfig
	PprofCIDRs         []string
	CheckoutRateRPS    float64
	CheckoutRateBurst  int
	CatalogCacheMaxAge int
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Cart     *service.CartService
	Checkout *service.CheckoutService
	Catalog  *service.CatalogService
	Sessions *session.Store
	Tokens   middleware.TokenValidator
	Health   *health.Handler
	// MockGateway, when set, mounts the hosted page of the in-memory gateway.
	MockGateway *mockgw.Gateway
}

// NewRouter creates a chi router with all shop routes registered.
func NewRouter(deps Deps, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.OptionalAuth(deps.Tokens))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	catalogHandler := NewCatalogHandler(deps.Catalog, logger)
	cartHandler := NewCartHandler(deps.Cart, logger)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, logger)

	// Storefront browsing
	r.Group(func(r chi.Router) {
		r.Use(middleware.CacheControl(cfg.CatalogCacheMaxAge))

		r.Get("/products", catalogHandler.ListProducts)
		r.Get("/products/{productId}", catalogHandler.GetProduct)
		r.Get("/categories", catalogHandler.ListCategories)
	})

	// Everything below is keyed by the browser session.
	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(deps.Sessions, cfg.Cookie))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Get("/add/{productId}", cartHandler.AddItem)
			r.Get("/remove/{cartItemId}", cartHandler.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.CheckoutRateRPS, cfg.CheckoutRateBurst, logger))

			r.With(middleware.RequireAuth).Get("/", checkoutHandler.GetCheckout)
			r.With(middleware.RequireAuth, ContentTypeJSONOrForm).Post("/", checkoutHandler.PostCheckout)
			r.Get("/pay", checkoutHandler.Pay)
			r.Get("/complete", checkoutHandler.Complete)
		})
	})

	r.With(middleware.RequireAuth).Get("/orders/{orderId}", checkoutHandler.GetOrder)

	if deps.MockGateway != nil {
		r.Get(mockgw.PayPath, deps.MockGateway.PayHandler)
	}

	return r
}
